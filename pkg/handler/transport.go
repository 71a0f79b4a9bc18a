package handler

// Sender is the narrow send-half of the transport contract: reliable
// delivery is ordered and retransmitted by the underlying transport
// (TCP-backed in pkg/wsgateway's case), unreliable delivery may be
// dropped under backpressure. The handler never imports the transport
// package directly -- each connection's Sender is handed to it at
// connect time -- so pkg/wsgateway and pkg/handler can be developed
// and tested independently, with the handler holding only a weak
// handle to the transport (a plain interface reference, since Go has
// no reference cycle to break between the two).
type Sender interface {
	Send(data []byte, reliable bool) error
	Disconnect(reason string)
}
