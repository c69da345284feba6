package gateway

import (
	"bytes"
	"io"
	"time"

	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/plgd-dev/go-coap/v3/mux"
	"github.com/sirupsen/logrus"
)

// dialTimeout also bounds the blockwise transfer window for large bodies
// (actuator/sensor registration payloads are small but the library
// requires a value).
const dialTimeout = 5 * time.Second

func bytesReader(b []byte) io.ReadSeeker {
	return bytes.NewReader(b)
}

// recoverMiddleware guards a handler panic from taking down the whole
// CoAP server — spec §7 requires device-facing failures to collapse to
// an opaque "KO", never a crash.
func recoverMiddleware(log *logrus.Entry) mux.MiddlewareFunc {
	return func(next mux.Handler) mux.Handler {
		return mux.HandlerFunc(func(w mux.ResponseWriter, msg *mux.Message) {
			defer func() {
				if rec := recover(); rec != nil {
					log.WithField("panic", rec).Error("coap handler panicked")
					_ = w.SetResponse(codes.Content, message.TextPlain, bytesReader([]byte("KO")))
				}
			}()
			next.ServeCOAP(w, msg)
		})
	}
}
