package credstore

// Hybrid composes a Memory store and a Cookie store so that both pure
// token flows (SPA, mobile) and cookie-session flows work without the
// caller knowing which one is active. Reads prefer the memory store and
// fall back to cookies; writes go to both unconditionally.
type Hybrid struct {
	mem    *Memory
	cookie *Cookie
}

var _ Store = (*Hybrid)(nil)

// NewHybrid composes the given memory and cookie stores.
func NewHybrid(mem *Memory, cookie *Cookie) *Hybrid {
	if mem == nil {
		mem = NewMemory()
	}
	return &Hybrid{mem: mem, cookie: cookie}
}

func (h *Hybrid) SessionToken() string {
	if t := h.mem.SessionToken(); t != "" {
		return t
	}
	return h.cookie.SessionToken()
}

func (h *Hybrid) SetSessionToken(token string) {
	h.mem.SetSessionToken(token)
	h.cookie.SetSessionToken(token)
}

func (h *Hybrid) CSRFToken() string {
	if t := h.mem.CSRFToken(); t != "" {
		return t
	}
	return h.cookie.CSRFToken()
}

func (h *Hybrid) SetCSRFToken(token string) {
	h.mem.SetCSRFToken(token)
	h.cookie.SetCSRFToken(token)
}
