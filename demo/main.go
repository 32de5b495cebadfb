// Demo launcher: runs the sync server as a child process and prints the
// WebSocket URL to point clients at.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/asadovsky/gosh"

	"github.com/zeeshan-mehdi/ARISXR/server/hub"
)

var (
	port    = flag.Int("port", 4000, "")
	serveFn = gosh.Register("serve", hub.Serve)
)

func main() {
	gosh.MaybeRunFnAndExit()
	flag.Parse()
	addr := fmt.Sprintf("localhost:%d", *port)
	sh := gosh.NewShell(gosh.Opts{})
	defer sh.Cleanup()
	c := sh.Fn(serveFn, addr)
	c.Start()
	c.AwaitReady()
	fmt.Fprintf(os.Stdout, "ws://%s/ws\n", addr)
	c.Wait()
}
