package serialmux

import (
	"context"
	"net/http"

	"github.com/banshee-data/mindflex/internal/dispatch"
)

// DisabledSerialMux is a no-op SerialMux used when the headset is absent
// (--disable-headset). It lets the HTTP server and stores run without a
// device; subscribers simply never receive records.
type DisabledSerialMux struct {
	dispatcher *dispatch.Dispatcher
}

func NewDisabledSerialMux(d *dispatch.Dispatcher) *DisabledSerialMux {
	if d == nil {
		d = dispatch.New(dispatch.Options{})
	}
	return &DisabledSerialMux{dispatcher: d}
}

func (d *DisabledSerialMux) SendHandshake() error { return nil }

func (d *DisabledSerialMux) Dispatcher() *dispatch.Dispatcher { return d.dispatcher }

func (d *DisabledSerialMux) Monitor(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }

func (d *DisabledSerialMux) Close() error { return nil }

func (d *DisabledSerialMux) AttachAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/headset-disabled", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("headset disabled"))
	})
}
