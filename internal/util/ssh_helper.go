package util

import (
	"fmt"
	"net"
	"os"

	log "github.com/sirupsen/logrus"
)

// IsRemoteSession reports whether the CLI appears to run inside an SSH
// session, where the loopback OAuth callback is unreachable from the
// user's browser without a tunnel.
func IsRemoteSession() bool {
	return os.Getenv("SSH_CONNECTION") != "" || os.Getenv("SSH_TTY") != ""
}

// getOutboundIP returns the preferred outbound IP address of this machine,
// determined from the local side of a UDP socket to a public resolver.
func getOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			log.Warnf("failed to close UDP connection: %v", closeErr)
		}
	}()

	localAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("could not assert UDP address type")
	}
	return localAddr.IP.String(), nil
}

// PrintSSHTunnelInstructions prints the SSH command that forwards the OAuth
// callback port from the user's local machine to this host. It prints nothing
// when the session is local.
func PrintSSHTunnelInstructions(port int) {
	if !IsRemoteSession() {
		return
	}

	hostAddr, err := getOutboundIP()
	if err != nil {
		log.Debugf("failed to determine host address: %v", err)
		hostAddr = "<server-address>"
	}

	border := "================================================================================"
	fmt.Println("This looks like a remote session; the login callback needs an SSH tunnel.")
	fmt.Println(border)
	fmt.Println("  Run the following on your LOCAL machine, then complete login in its browser:")
	fmt.Println()
	fmt.Printf("  ssh -L %d:127.0.0.1:%d <user>@%s\n", port, port, hostAddr)
	fmt.Println(border)
}
