package agent

import "github.com/google/gops/agent"

// startGops optionally listens for github.com/google/gops/agent
// diagnostic connections (goroutine dumps, heap profiles, GC stats)
// against the running process. Overhead when disabled is zero; this is
// off unless a caller opts in through Config.
func startGops(addr string) (stop func(), err error) {
	if err := agent.Listen(agent.Options{Addr: addr}); err != nil {
		return nil, err
	}
	return agent.Close, nil
}
