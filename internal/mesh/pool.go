package mesh

import (
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/nodeprep/nodeprep/internal/logger"
	"github.com/nodeprep/nodeprep/pkg/sshutil"
)

// Dialer opens an authenticated SSH connection to host as user.
// Injectable so tests can supply mock clients.
type Dialer func(user, host string) (sshutil.SSHClient, error)

// Pool owns one SSH session per host for the duration of a run. All commands
// and stdin-fed transfers to a host go through its single cached client, so
// each host authenticates exactly once.
type Pool struct {
	user            string
	dial            Dialer
	log             logger.Logger
	keepAliveEvery  time.Duration
	keepAliveMisses int

	mu      sync.Mutex
	clients map[string]sshutil.SSHClient
	stops   []chan struct{}
	wg      sync.WaitGroup
}

// PoolOptions configures session keepalive behavior.
type PoolOptions struct {
	// KeepAliveEvery is the interval between liveness probes on each
	// session. Zero disables keepalive.
	KeepAliveEvery time.Duration

	// KeepAliveMisses is how many consecutive probe failures are tolerated
	// before the session is closed as unreachable.
	KeepAliveMisses int
}

// NewPool creates a session pool for the given user.
func NewPool(user string, dial Dialer, opts PoolOptions, log logger.Logger) *Pool {
	if log == nil {
		log = logger.Noop()
	}
	misses := opts.KeepAliveMisses
	if misses <= 0 {
		misses = 3
	}
	return &Pool{
		user:            user,
		dial:            dial,
		log:             log,
		keepAliveEvery:  opts.KeepAliveEvery,
		keepAliveMisses: misses,
		clients:         make(map[string]sshutil.SSHClient),
	}
}

// Get returns the session for host, dialing on first use.
func (p *Pool) Get(host string) (sshutil.SSHClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if client, ok := p.clients[host]; ok {
		return client, nil
	}

	p.log.Debug("dialing %s@%s", p.user, host)
	client, err := p.dial(p.user, host)
	if err != nil {
		return nil, err
	}
	p.clients[host] = client

	if p.keepAliveEvery > 0 {
		stop := make(chan struct{})
		p.stops = append(p.stops, stop)
		p.wg.Add(1)
		go p.keepAlive(host, client, stop)
	}

	return client, nil
}

// keepAlive probes the session until stopped, closing it after too many
// consecutive silent intervals. A closed session makes the next command on it
// fail, which surfaces as an unreachable-host error at the phase boundary.
func (p *Pool) keepAlive(host string, client sshutil.SSHClient, stop chan struct{}) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.keepAliveEvery)
	defer ticker.Stop()

	misses := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			_, _, err := client.SendRequest("keepalive@openssh.com", true, nil)
			if err == nil {
				misses = 0
				continue
			}
			misses++
			p.log.Debug("keepalive miss %d/%d for %s", misses, p.keepAliveMisses, host)
			if misses >= p.keepAliveMisses {
				p.log.Warn("host %s silent for %d probes, closing session", host, misses)
				client.Close()
				return
			}
		}
	}
}

// Hosts returns the hosts with an open session.
func (p *Pool) Hosts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	hosts := make([]string, 0, len(p.clients))
	for host := range p.clients {
		hosts = append(hosts, host)
	}
	return hosts
}

// Close tears down every session and stops keepalive probes.
// Errors from individual sessions are aggregated, not short-circuited.
func (p *Pool) Close() error {
	p.mu.Lock()
	for _, stop := range p.stops {
		close(stop)
	}
	p.stops = nil
	clients := p.clients
	p.clients = make(map[string]sshutil.SSHClient)
	p.mu.Unlock()

	p.wg.Wait()

	var result *multierror.Error
	for host, client := range clients {
		if err := client.Close(); err != nil {
			result = multierror.Append(result, err)
			p.log.Debug("closing session for %s: %v", host, err)
		}
	}
	return result.ErrorOrNil()
}
