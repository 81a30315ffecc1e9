package cmd

import (
	"fmt"
	"net"
)

func newListener(port int) (net.Listener, error) {
	return net.Listen("tcp", fmt.Sprintf(":%d", port))
}
