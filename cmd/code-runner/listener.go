package main

import (
	"net"
	"strings"
	"sync"

	"github.com/coreos/go-systemd/v22/activation"
	"go.uber.org/zap"
)

// socket activated listeners, passed by systemd in LISTEN_FDS order
var activated = sync.OnceValue(func() []net.Listener {
	lis, err := activation.Listeners()
	if err != nil {
		logger.Warn("Socket activation failed", zap.Error(err))
		return nil
	}
	rt := make([]net.Listener, 0, len(lis))
	for _, l := range lis {
		if l != nil {
			rt = append(rt, l)
		}
	}
	return rt
})

// newListener returns the index-th socket activated listener if present,
// otherwise listens on addr
func newListener(index int, addr string) (net.Listener, error) {
	if lis := activated(); index < len(lis) {
		return lis[index], nil
	}
	return net.Listen("tcp", addr)
}

func printListener(lis net.Listener) string {
	addr := lis.Addr()
	return strings.Join([]string{addr.Network(), addr.String()}, "://")
}
