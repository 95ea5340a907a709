package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/Gameaday/ia-helper-sub003/common"
	"github.com/Gameaday/ia-helper-sub003/pkg/iacli"
)

// serverAddr resolves the daemon address from the environment, falling
// back to the default port on localhost.
func serverAddr() string {
	port := common.DefaultPort
	if v := os.Getenv(common.PortEnv); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			port = p
		}
	}
	return fmt.Sprintf("127.0.0.1:%d", port)
}

func newClient(ctx context.Context) (*iacli.Client, error) {
	return iacli.NewClient(ctx, serverAddr(), os.Getenv(common.SecretEnv))
}
