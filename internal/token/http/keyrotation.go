package http

import (
	"net/http"
	"sort"
	"time"

	"github.com/lockbridge/tokenvault/internal/token/service"
	"github.com/lockbridge/tokenvault/pkg/httpx"
	"github.com/lockbridge/tokenvault/pkg/jwtx"
	"github.com/lockbridge/tokenvault/pkg/slogx"
)

// KeyRotationHandler serves the key administration endpoints. Listing never
// exposes secret material: only generation metadata goes on the wire.
type KeyRotationHandler struct {
	RotationService *service.RotationService
	Keyring         *jwtx.Keyring
}

type rotateResponse struct {
	Generation uint64 `json:"generation"`
}

type keyGenerationInfo struct {
	Generation uint64     `json:"generation"`
	Algorithm  string     `json:"algorithm"`
	Current    bool       `json:"current"`
	DerivedAt  time.Time  `json:"derived_at"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}

func (h *KeyRotationHandler) HandleRotate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := h.RotationService.Rotate(ctx)
	if err != nil {
		slogx.FromContext(ctx).Error("key rotation failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "rotation_failed")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, rotateResponse{Generation: id})
}

func (h *KeyRotationHandler) HandleListKeys(w http.ResponseWriter, r *http.Request) {
	gens := h.Keyring.Generations()
	sort.Slice(gens, func(i, j int) bool { return gens[i].ID < gens[j].ID })

	infos := make([]keyGenerationInfo, 0, len(gens))
	for _, g := range gens {
		info := keyGenerationInfo{
			Generation: g.ID,
			Algorithm:  g.Algorithm,
			Current:    !g.Retired(),
			DerivedAt:  g.DerivedAt,
		}
		if g.Retired() {
			vu := g.ValidUntil
			info.ValidUntil = &vu
		}
		infos = append(infos, info)
	}

	httpx.WriteJSON(w, http.StatusOK, infos)
}
