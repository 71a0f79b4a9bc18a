package handler

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"playrelay/pkg/bridge"
	"playrelay/pkg/clientdata"
	"playrelay/pkg/playerstate"
	"playrelay/pkg/scripting"
	"playrelay/pkg/session"
	"playrelay/pkg/trigger"
	"playrelay/pkg/wire"
)

// Config bundles the server-wide settings a handler consults on
// every message.
type Config struct {
	// Tickrate is advertised to the client in LoginOk and drives the
	// scripting heartbeat period (1/Tickrate seconds) the scheduler
	// runs at.
	Tickrate uint16

	// VerifyScriptSignatures gates SendLevelScript on a valid
	// HMAC-SHA-256 signature from the installed bridge ScriptSigner.
	VerifyScriptSignatures bool
}

// Auth is the subset of *bridge.Client the handler needs for
// authentication and role resolution. Kept as a narrow interface
// (rather than depending on *bridge.Client directly) so tests can
// install a fake issuer without driving the bridge's connection
// state machine -- the same decoupling pkg/bridge.Hooks and
// pkg/handler.Sender already apply to their own cross-package edges.
type Auth interface {
	Issuer() (bridge.TokenIssuer, bool)
	Signer() (bridge.ScriptSigner, bool)
	Roles() []clientdata.Role
}

// Shared holds the registries every per-connection Handler consults:
// the global client map, the session manager, the bridge-backed auth
// and room/user state, and the scripting engine. One Shared is
// constructed at startup and handed to every connection's Handler and
// to the background Scheduler.
type Shared struct {
	Config   Config
	Clients  *clientdata.Store
	Sessions *session.Manager
	Auth     Auth
	Rooms    *bridge.RoomStore
	Users    *bridge.UserCache
	Engine   scripting.Engine
	Log      *logrus.Entry
}

// NewShared creates the server-wide registries a connection handler
// and the scheduler both operate on. engine may be
// scripting.NullEngine{} when scripting is compiled out.
func NewShared(cfg Config, engine scripting.Engine, br *bridge.Client) *Shared {
	return &Shared{
		Config:   cfg,
		Clients:  clientdata.NewStore(),
		Sessions: session.NewManager(),
		Auth:     br,
		Rooms:    br.Rooms,
		Users:    br.Users,
		Engine:   engine,
		Log:      logrus.WithField("component", "handler"),
	}
}

// Handler is one connection's message-processing state: its identity
// and the Sender it replies through, plus a reference to the shared
// registries every connection's handler dispatches against.
type Handler struct {
	*Shared

	Client *clientdata.ClientData
	sender Sender
}

// New creates a per-connection handler. cd should already have its
// disconnect callback wired to sender's underlying transport via
// clientdata.ClientData.SetDisconnectFunc.
func New(shared *Shared, cd *clientdata.ClientData, sender Sender) *Handler {
	return &Handler{Shared: shared, Client: cd, sender: sender}
}

// Dispatch decodes the leading tag byte of data and routes to the
// matching handler function via a tag-keyed table, over a fixed
// binary tag instead of a JSON-RPC method string.
func (h *Handler) Dispatch(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("handler: empty message")
	}
	tag := MessageType(data[0])
	d := wire.NewDecoder(data[1:])

	switch tag {
	case MsgLoginUToken:
		return h.handleLogin(d, false)
	case MsgLoginUTokenAndJoin:
		return h.handleLogin(d, true)
	case MsgJoinSession:
		return h.handleJoinSession(d)
	case MsgLeaveSession:
		return h.handleLeaveSession()
	case MsgPlayerData:
		return h.handlePlayerData(d)
	case MsgUpdateIcons:
		return h.handleUpdateIcons(d)
	case MsgSendLevelScript:
		return h.handleSendLevelScript(d)
	default:
		return fmt.Errorf("handler: unknown message tag %d", tag)
	}
}

// handleLogin implements LoginUToken / LoginUTokenAndJoin.
func (h *Handler) handleLogin(d *wire.Decoder, andJoin bool) error {
	lm, err := decodeLoginUToken(d)
	if err != nil {
		return err
	}

	var jp joinParams
	if andJoin {
		if jp, err = decodeJoinParams(d); err != nil {
			return err
		}
	}

	if h.Client.IsAuthorized() {
		if andJoin {
			return h.joinSession(jp)
		}
		return nil
	}

	issuer, ok := h.Auth.Issuer()
	if !ok {
		h.replyLoginFailed(ReasonCentralServerUnreachable)
		return nil
	}

	td, err := issuer.ValidateMatch(lm.Token, lm.ClaimedAccountID)
	if err != nil {
		h.Log.WithError(err).Warn("user token rejected")
		h.replyLoginFailed(ReasonInvalidUserToken)
		return nil
	}

	resolved, unknown := clientdata.ResolveRoles(td.RolesStr, h.Auth.Roles())
	for _, u := range unknown {
		h.Log.WithField("role", u).Warn("unresolved role string id")
	}

	if prev, had := h.Clients.Replace(td.AccountID, h.Client); had && prev != h.Client {
		prev.Deauthorize()
		if s, ok := prev.Session(); ok {
			s.RemovePlayer(prev.AccountID())
			h.Sessions.DeleteIfEmpty(s.ID)
		}
		prev.Disconnect("duplicate login")
	}

	h.Client.SetAccountData(td)
	h.Client.SetRoles(resolved, td.NameColor)

	h.replyLoginOk()

	if andJoin {
		return h.joinSession(jp)
	}
	return nil
}

// handleJoinSession implements the standalone JoinSession message.
func (h *Handler) handleJoinSession(d *wire.Decoder) error {
	if !h.Client.IsAuthorized() {
		return nil
	}
	jp, err := decodeJoinParams(d)
	if err != nil {
		return err
	}
	return h.joinSession(jp)
}

// joinSession is the shared body of JoinSession and the combined
// login-and-join form.
func (h *Handler) joinSession(jp joinParams) error {
	sid := session.ID(jp.SessionID)

	var owner int32
	if roomID := sid.RoomID(); roomID != 0 {
		room, ok := h.Rooms.Get(roomID)
		if !ok {
			h.replyJoinFailed(ReasonInvalidRoom)
			return nil
		}
		if room.Passcode != 0 && room.Passcode != jp.Passcode {
			h.replyJoinFailed(ReasonInvalidPasscode)
			return nil
		}
		owner = room.Owner
	}

	sess := h.Sessions.GetOrCreate(int64(sid), owner, jp.Platformer)
	accountID := h.Client.AccountID()

	if prev := h.Client.SetSession(sess); prev != nil && !prev.Equal(sess) {
		prev.RemovePlayer(accountID)
		h.Sessions.DeleteIfEmpty(prev.ID)
	}

	sess.AddPlayer(accountID, false)

	if engine, ok := sess.Scripting(); ok {
		if err := engine.HandleEvent(sess.ID, wire.PlayerJoin{Account: accountID}); err != nil {
			h.Log.WithError(err).Warn("script player-join failed")
		}
	}
	return nil
}

// handleLeaveSession implements LeaveSession.
func (h *Handler) handleLeaveSession() error {
	sess := h.Client.ClearSession()
	if sess == nil {
		return nil
	}
	accountID := h.Client.AccountID()
	sess.RemovePlayer(accountID)
	h.Sessions.DeleteIfEmpty(sess.ID)

	if engine, ok := sess.Scripting(); ok {
		if err := engine.HandleEvent(sess.ID, wire.PlayerLeave{Account: accountID}); err != nil {
			h.Log.WithError(err).Warn("script player-leave failed")
		}
	}
	return nil
}

// handleUpdateIcons overwrites the client's cosmetic selection.
func (h *Handler) handleUpdateIcons(d *wire.Decoder) error {
	if !h.Client.IsAuthorized() {
		return nil
	}
	icons, err := decodeIcons(d)
	if err != nil {
		return err
	}
	h.Client.SetIcons(icons)
	return nil
}

type neighbour struct {
	id    int32
	state playerstate.State
}

// handlePlayerData implements the per-frame PlayerData message: the
// spoofed-account-id guard, inbound event side effects, the visible
// neighbour fan-out, metadata replies, and outbound event stream.
func (h *Handler) handlePlayerData(d *wire.Decoder) error {
	if !h.Client.IsAuthorized() {
		return nil
	}

	in, err := decodePlayerDataIn(d)
	if err != nil {
		return err
	}

	accountID := h.Client.AccountID()
	if in.Data.AccountID != accountID {
		h.Log.WithFields(logrus.Fields{
			"claimed": in.Data.AccountID,
			"actual":  accountID,
		}).Warn("spoofed account id in player data")
		return nil
	}

	sess, ok := h.Client.Session()
	if !ok {
		h.Log.Warn("player data received with no session")
		return nil
	}

	for _, ev := range in.Events {
		h.handleInboundEvent(sess, accountID, ev)
	}

	outEvents := sess.UpdatePlayer(accountID, in.Data)

	var neighbours []neighbour
	sess.ForEveryPlayer(func(id int32, gp *session.GamePlayerState) {
		if id == accountID {
			return
		}
		st, ok := gp.State()
		if !ok {
			return
		}
		neighbours = append(neighbours, neighbour{id: id, state: st})
	})

	replies := make([]metadataReply, 0, len(in.Requests))
	for _, reqID := range in.Requests {
		replies = append(replies, h.buildMetadataReply(reqID))
	}

	e := wire.NewEncoder(estimatePlayerDataSize(len(neighbours), len(in.Requests), outEvents))
	e.U8(uint8(OutPlayerData))

	e.U16(uint16(len(neighbours)))
	for _, n := range neighbours {
		playerstate.EncodeNeighbour(e, in.Camera, n.state, sess.Platformer())
	}

	e.U8(uint8(len(replies)))
	for _, r := range replies {
		if err := encodeMetadataReply(e, r); err != nil {
			return err
		}
	}

	e.U8(uint8(len(outEvents)))
	for _, ev := range outEvents {
		wire.EncodeOutEvent(e, ev)
	}

	return h.sender.Send(e.Bytes(), len(outEvents) > 0)
}

// estimatePlayerDataSize implements spec's outbound capacity estimate:
// 88 + players*64 + requests*70 + sum(event.EstimateBytes()) + 2.
func estimatePlayerDataSize(playerCount, requestCount int, events []wire.Event) int {
	total := 88 + playerCount*64 + requestCount*70 + 2
	for _, ev := range events {
		total += ev.EstimateBytes()
	}
	return total
}

func (h *Handler) buildMetadataReply(accountID int32) metadataReply {
	client, ok := h.Clients.Upgrade(accountID)
	if !ok {
		return metadataReply{AccountID: 0}
	}
	td, ok := client.AccountData()
	if !ok {
		return metadataReply{AccountID: 0}
	}
	return metadataReply{
		AccountID: accountID,
		UserID:    td.UserID,
		Username:  td.Username,
		Icons:     client.Icons(),
		Roles:     client.Roles(),
		NameColor: client.NameColor(),
	}
}

// handleInboundEvent applies one decoded inbound event's side
// effects: forwarding to the scripting engine (if active) and acting
// on the built-ins the core interprets directly.
func (h *Handler) handleInboundEvent(sess *session.Session, sender int32, ev wire.Event) {
	if engine, ok := sess.Scripting(); ok {
		if err := engine.HandleEvent(sess.ID, ev); err != nil {
			h.Log.WithError(err).Warn("script event handling failed")
		}
	}

	switch e := ev.(type) {
	case wire.CounterChange:
		var rawF float32
		if e.Op == wire.CounterMultiply || e.Op == wire.CounterDivide {
			rawF = e.F32Value
		}
		sess.NotifyCounterChange(int32(e.ItemID), trigger.Op(e.Op), e.IntValue, rawF)

	case wire.TwoPlayerLinkRequest:
		sess.PushEvent(e.PlayerID, wire.TwoPlayerLinkRequest{PlayerID: sender, Player1: !e.Player1})

	case wire.TwoPlayerUnlink:
		sess.PushEvent(e.PlayerID, wire.TwoPlayerUnlink{PlayerID: sender})

	case wire.RequestScriptLogs:
		if _, scripted := sess.Scripting(); !scripted {
			return
		}
		if sess.Owner() != sender {
			return
		}
		h.replyScriptLogs(sess)
	}
}

func (h *Handler) replyScriptLogs(sess *session.Session) {
	logs := sess.DrainLogs()
	var ramUsage uint64
	if engine, ok := sess.Scripting(); ok {
		ramUsage = engine.MemoryUsage()
	}

	e := wire.NewEncoder(16 + len(logs)*48)
	if err := encodeScriptLogs(e, logs, sess.CreatedAt(), ramUsage); err != nil {
		h.Log.WithError(err).Warn("encode script logs")
		return
	}
	if err := h.sender.Send(e.Bytes(), true); err != nil {
		h.Log.WithError(err).Warn("send script logs")
	}
}

// handleSendLevelScript implements SendLevelScript: owner-only,
// optionally signature-gated, exactly-one-main-script level script
// installation.
func (h *Handler) handleSendLevelScript(d *wire.Decoder) error {
	if !h.Client.IsAuthorized() {
		return nil
	}
	sess, ok := h.Client.Session()
	if !ok {
		h.Log.Warn("send level script with no session")
		return nil
	}
	accountID := h.Client.AccountID()
	if sess.Owner() != accountID {
		h.Log.Warn("send level script from non-owner")
		return nil
	}

	scripts, err := decodeSendLevelScript(d)
	if err != nil {
		return err
	}

	if h.Config.VerifyScriptSignatures {
		signer, ok := h.Auth.Signer()
		if !ok {
			sess.AppendLog("script signer unavailable, rejecting level script")
			return nil
		}
		for _, s := range scripts {
			if err := signer.Verify(s.Content, s.Signature); err != nil {
				sess.AppendLog(fmt.Sprintf("script %q signature rejected: %v", s.Name, err))
				return nil
			}
		}
	}

	var main *levelScript
	for i := range scripts {
		if scripts[i].Name != "main" {
			continue
		}
		if main != nil {
			sess.AppendLog("multiple main scripts in level script upload, rejecting")
			return nil
		}
		main = &scripts[i]
	}
	if main == nil {
		sess.AppendLog("no main script found in level script upload, rejecting")
		return nil
	}

	if err := h.Engine.InitScripts(sess.ID, main.Content); err != nil {
		sess.AppendLog(fmt.Sprintf("script init failed: %v", err))
		return nil
	}
	sess.SetScripting(h.Engine)
	h.Sessions.RegisterHeartbeat(sess)

	sess.ForEveryPlayerID(func(id int32) {
		if err := h.Engine.HandleEvent(sess.ID, wire.PlayerJoin{Account: id}); err != nil {
			h.Log.WithError(err).Warn("script catch-up player-join failed")
		}
	})
	return nil
}

func (h *Handler) replyLoginOk() {
	e := wire.NewEncoder(3)
	encodeLoginOk(e, h.Config.Tickrate)
	if err := h.sender.Send(e.Bytes(), true); err != nil {
		h.Log.WithError(err).Warn("send login ok")
	}
}

func (h *Handler) replyLoginFailed(reason LoginFailedReason) {
	e := wire.NewEncoder(2)
	encodeLoginFailed(e, reason)
	if err := h.sender.Send(e.Bytes(), true); err != nil {
		h.Log.WithError(err).Warn("send login failed")
	}
}

func (h *Handler) replyJoinFailed(reason JoinSessionFailedReason) {
	e := wire.NewEncoder(2)
	encodeJoinSessionFailed(e, reason)
	if err := h.sender.Send(e.Bytes(), true); err != nil {
		h.Log.WithError(err).Warn("send join session failed")
	}
}

// OnDisconnect tears down session membership and the global
// account->client entry, matching spec's weak-pointer identity
// compare: the entry is only removed if it still points at this
// exact client (a duplicate login may have already replaced it).
func (h *Handler) OnDisconnect() {
	if sess := h.Client.ClearSession(); sess != nil {
		accountID := h.Client.AccountID()
		sess.RemovePlayer(accountID)
		h.Sessions.DeleteIfEmpty(sess.ID)
		if engine, ok := sess.Scripting(); ok {
			if err := engine.HandleEvent(sess.ID, wire.PlayerLeave{Account: accountID}); err != nil {
				h.Log.WithError(err).Warn("script player-leave failed")
			}
		}
	}
	if accountID := h.Client.AccountID(); accountID != 0 {
		h.Clients.RemoveIfSame(accountID, h.Client)
	}
}
