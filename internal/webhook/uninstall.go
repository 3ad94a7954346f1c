package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
)

// uninstallPayload is the decoded body of an uninstall signed request.
type uninstallPayload struct {
	CommunityID int64  `json:"community_id"`
	Algorithm   string `json:"algorithm,omitempty"`
	IssuedAt    int64  `json:"issued_at,omitempty"`
}

// decodeSignedRequest verifies a "signature.payload" signed request
// and returns the decoded payload bytes. Both halves are base64url;
// the HMAC-SHA256 runs over the still-encoded payload half.
func decodeSignedRequest(signedRequest, appSecret string) ([]byte, error) {
	parts := strings.Split(signedRequest, ".")
	if len(parts) != 2 {
		return nil, badRequest("Signed request is malformatted.")
	}
	signature, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[0], "="))
	if err != nil {
		return nil, badRequest("Signed request is malformatted.")
	}
	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return nil, badRequest("Signed request is malformatted.")
	}

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write([]byte(parts[1]))
	if !hmac.Equal(signature, mac.Sum(nil)) {
		return nil, badRequest("Signed request does not match.")
	}
	return payload, nil
}

// CommunityUninstall handles the platform's uninstall notification.
// The body carries a signed request rather than an xhub signature, so
// this endpoint sits outside the usual validation gate. The install's
// community row is removed on a verified request.
func (h *Handler) CommunityUninstall(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	h.record(r, body)

	var req struct {
		SignedRequest string `json:"signed_request"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.SignedRequest == "" {
		h.fail(w, badRequest("No signed request sent."))
		return
	}

	payloadBytes, err := decodeSignedRequest(req.SignedRequest, h.cfg.AppSecret)
	if err != nil {
		h.fail(w, err)
		return
	}
	var payload uninstallPayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		h.fail(w, badRequest("Signed request is malformatted."))
		return
	}

	if h.store != nil {
		if err := h.store.DeleteCommunity(r.Context(), payload.CommunityID); err != nil {
			h.fail(w, err)
			return
		}
	}
	h.logger.Info().Int64("community_id", payload.CommunityID).Msg("community uninstalled")
	w.WriteHeader(http.StatusOK)
}
