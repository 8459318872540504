// iotedge-call invokes one direct method against the fabric and
// prints the result: a hand tool for checking whether a module answers
// before leaving the probe to watch it. Exit status is 0 only when the
// method returns 200.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/ziyasal/iotedge/pkg/hub"
	"github.com/ziyasal/iotedge/pkg/identity"
	"github.com/ziyasal/iotedge/pkg/probe"
	"github.com/ziyasal/iotedge/pkg/protocol"
	"github.com/ziyasal/iotedge/pkg/protocol/codec"
	"github.com/ziyasal/iotedge/pkg/transport"
)

func main() {
	kind := flag.String("kind", "tcp", "transport kind: tcp|ws|quic|winpipe|mem")
	addr := flag.String("addr", "edgehub:15580", "gateway address")
	device := flag.String("device", "probe-device", "local device id")
	module := flag.String("module", "methodCaller", "local module id")
	target := flag.String("target", "", "target as device/module (required)")
	method := flag.String("method", probe.DefaultMethodName, "method name to invoke")
	payload := flag.String("payload", string(probe.DefaultMethodPayload), "method payload (json)")
	token := flag.String("token", "", "shared-access token")
	format := flag.String("format", "json", "body encoding: json|cbor")
	timeout := flag.Duration("timeout", 30*time.Second, "dial/handshake/invoke timeout")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	zap.ReplaceGlobals(logger)
	defer logger.Sync()

	if *target == "" {
		fatalf("missing -target device/module")
	}
	tgt, err := identity.Parse(*target)
	if err != nil {
		fatalf("bad -target: %v", err)
	}
	k, err := transport.ParseKind(*kind)
	if err != nil {
		fatalf("bad -kind: %v", err)
	}
	f, err := codec.ParseFormat(*format)
	if err != nil {
		fatalf("bad -format: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client, err := hub.Open(ctx, hub.Options{
		Kind:             k,
		Address:          *addr,
		Identity:         identity.New(*device, *module),
		Token:            *token,
		Format:           f,
		DialTimeout:      *timeout,
		HandshakeTimeout: *timeout,
		Logger:           logger,
	})
	if err != nil {
		fatalf("open: %v", err)
	}
	defer client.Close()
	fmt.Println("Connected; session:", client.SessionID())

	res, err := client.InvokeMethod(ctx, tgt, hub.Call{
		Name:    *method,
		Payload: json.RawMessage(*payload),
		Timeout: *timeout,
	})
	if err != nil {
		fatalf("invoke %s on %s: %v", *method, tgt, err)
	}

	fmt.Println("Status:", res.Status)
	if len(res.Payload) > 0 {
		fmt.Println("Payload:", string(res.Payload))
	}
	if res.Status != protocol.StatusOK {
		os.Exit(1)
	}
}

func fatalf(format string, a ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
