package transport

import (
	"encoding/json"
	"net/http"

	"github.com/houzhh15/sdp-peercert/certinfo"
	"github.com/houzhh15/sdp-peercert/protocol"
)

// PeerIdentity HTTP 中间件：检查请求所在 TLS 会话的对端证书
// 通过后将 PeerInfo 写入请求 context，失败时返回 JSON 错误
func PeerIdentity(guard *IdentityGuard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			peer, perr := guard.Check(r.Context(), "http", r.RemoteAddr, certinfo.StateSession(r.TLS))
			if perr != nil {
				writeError(w, perr)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPeerInfo(r.Context(), peer)))
		})
	}
}

// PeerIdentityHandler 返回当前对端身份的 JSON 描述
// 必须位于 PeerIdentity 中间件之后
func PeerIdentityHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		peer, ok := PeerInfoFromContext(r.Context())
		if !ok {
			writeError(w, protocol.NewError(protocol.ErrCodeUnauthorized, "peer identity not established"))
			return
		}

		resp := protocol.NewPeerIdentityResponse(peer.Certificate, peer.Fingerprint)
		resp.RemoteAddr = peer.RemoteAddr
		if peer.Pin != nil {
			resp.Pinned = true
			resp.ClientID = peer.Pin.ClientID
		}
		writeJSON(w, http.StatusOK, resp)
	})
}

func writeError(w http.ResponseWriter, perr *protocol.Error) {
	writeJSON(w, perr.HTTPStatus(), protocol.NewErrorResponse(perr))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
