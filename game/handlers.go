package game

import (
	"context"
	"net/http"
	"regexp"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"secretwolf/metrics"
)

// TokenVerifier recovers the player and room ids from an identity token
// presented on a reconnect attempt.
type TokenVerifier interface {
	Verify(token string) (playerID, roomID string, err error)
}

// LobbyAPI is the handler's view of the directory actor.
type LobbyAPI interface {
	RequestAddAndRunRoom(ctx context.Context, r *Room)
	ForwardPlayerJoinRequestToRoom(ctx context.Context, roomID string, jreq roomJoinRequest)
	RequestAutoMatch(ctx context.Context, mode Mode, jreq roomJoinRequest)
}

var roomIDPattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

const handshakeTimeout = time.Second * 10

type GameHandler struct {
	lobby    LobbyAPI
	prompts  PromptProvider
	tokens   TokenIssuer
	verifier TokenVerifier
	upgrader websocket.Upgrader
}

func NewGameHandler(lobby LobbyAPI, prompts PromptProvider, tokens TokenIssuer, verifier TokenVerifier, allowedOrigins []string) *GameHandler {
	return &GameHandler{
		lobby:    lobby,
		prompts:  prompts,
		tokens:   tokens,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// CreateRoomHandler upgrades the connection, creates a friend room (custom
// mode via ?custom=true) and admits the caller as its first player/host.
func (h *GameHandler) CreateRoomHandler(ctx *gin.Context) {
	session, handshake, ok := h.upgradeAndHandshake(ctx, MsgJoin)
	if !ok {
		return
	}

	mode := ModeClassic
	if ctx.Query("custom") == "true" {
		mode = ModeCustom
	}

	room := NewRoom(false, mode, h.prompts, h.tokens)
	h.lobby.RequestAddAndRunRoom(ctx.Request.Context(), room)

	conn := newPlayerConn(session)
	respChan := make(chan joinResult, 1)
	room.RequestJoin(roomJoinRequest{conn: conn, name: handshake.Name, respChan: respChan})
	h.finishJoin(ctx.Request.Context(), session, conn, respChan)
}

// JoinRoomHandler admits the caller into an existing room by its code.
func (h *GameHandler) JoinRoomHandler(ctx *gin.Context) {
	roomID := ctx.Param("roomid")
	session, handshake, ok := h.upgradeAndHandshake(ctx, MsgJoin)
	if !ok {
		return
	}
	if !roomIDPattern.MatchString(roomID) {
		session.Write(makeWarn(WarnBadRoomID))
		session.Close(string(WarnBadRoomID))
		return
	}

	claimID := h.claimFromToken(handshake.Token, roomID)

	conn := newPlayerConn(session)
	respChan := make(chan joinResult, 1)
	h.lobby.ForwardPlayerJoinRequestToRoom(ctx.Request.Context(), roomID,
		roomJoinRequest{conn: conn, name: handshake.Name, claimID: claimID, respChan: respChan})
	h.finishJoin(ctx.Request.Context(), session, conn, respChan)
}

// AutoMatchHandler places the caller in a joinable auto room for the
// requested mode, creating one when none exists.
func (h *GameHandler) AutoMatchHandler(ctx *gin.Context) {
	session, handshake, ok := h.upgradeAndHandshake(ctx, MsgAuto)
	if !ok {
		return
	}

	mode := Mode(ctx.DefaultQuery("mode", string(ModeClassic)))
	if !validSelectableMode(mode) {
		session.Write(makeWarn(WarnInvalidOperation))
		session.Close(string(WarnInvalidOperation))
		return
	}

	conn := newPlayerConn(session)
	respChan := make(chan joinResult, 1)
	h.lobby.RequestAutoMatch(ctx.Request.Context(), mode,
		roomJoinRequest{conn: conn, name: handshake.Name, respChan: respChan})
	h.finishJoin(ctx.Request.Context(), session, conn, respChan)
}

// upgradeAndHandshake upgrades to websocket and reads the single handshake
// frame, which must carry the expected join type.
func (h *GameHandler) upgradeAndHandshake(ctx *gin.Context, wantType string) (*websocketSession, *joinPayload, bool) {
	ws, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Debug().Err(err).Str("ip", ctx.ClientIP()).Msg("websocket upgrade failed")
		return nil, nil, false
	}
	session := NewWebsocketSession(ws)

	ws.SetReadDeadline(time.Now().Add(handshakeTimeout))
	data, err := session.Read()
	if err != nil {
		session.Close("")
		return nil, nil, false
	}
	ws.SetReadDeadline(time.Now().Add(time.Minute))

	msg, err := decodeClientMessage(data)
	if err != nil || msg.t != wantType {
		session.Write(makeWarn(WarnInvalidOperation))
		session.Close(string(WarnInvalidOperation))
		return nil, nil, false
	}
	return session, msg.payload.(*joinPayload), true
}

func (h *GameHandler) claimFromToken(token, roomID string) string {
	if token == "" {
		return ""
	}
	playerID, tokenRoomID, err := h.verifier.Verify(token)
	if err != nil || tokenRoomID != roomID {
		return ""
	}
	return playerID
}

// finishJoin waits for the room actor's verdict and starts the pumps on
// success.
func (h *GameHandler) finishJoin(ctx context.Context, session *websocketSession, conn *playerConn, respChan chan joinResult) {
	var res joinResult
	select {
	case res = <-respChan:
	case <-ctx.Done():
		session.Close("")
		return
	case <-time.After(handshakeTimeout):
		session.Close("")
		return
	}

	if res.code != "" {
		session.Write(makeWarn(res.code))
		session.Close(string(res.code))
		return
	}

	go conn.WritePump()
	go func() {
		metrics.ConnectedPlayers.Inc()
		defer metrics.ConnectedPlayers.Dec()
		conn.ReadPump(res.room, res.playerID)
	}()
}
