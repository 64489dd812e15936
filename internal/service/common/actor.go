//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"fmt"
	"os"
	"os/user"

	pb "github.com/oshokin/alarm-bridge/internal/pb/v1"
)

// DetectActor gathers host and user information logged with control requests.
func DetectActor() (*pb.Actor, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("hostname: %w", err)
	}

	currentUser, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}

	return &pb.Actor{
		Hostname: hostname,
		Username: currentUser.Username,
	}, nil
}
