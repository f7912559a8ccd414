// Command roofmon-probe exercises a running roofmon from the client
// side: Alpaca UDP discovery, a connect handshake, then the issafe and
// status endpoints.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

const (
	discoveryPort    = 32227
	discoveryMessage = "alpacadiscovery1"

	maxRetries     = 3
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

func main() {
	var (
		host    = flag.String("host", "", "Server host (skips discovery)")
		port    = flag.Int("port", 11111, "Alpaca port (used with -host)")
		device  = flag.Int("device", 0, "SafetyMonitor device number")
		timeout = flag.Duration("timeout", 2*time.Second, "Discovery and request timeout")
		watch   = flag.Duration("watch", 0, "Keep polling at this interval (0 = one shot)")
	)
	flag.Parse()

	addr, alpacaPort := *host, *port
	if addr == "" {
		found, foundPort, err := discover(*timeout)
		if err != nil {
			log.Fatalf("discovery failed: %v (use -host to skip discovery)", err)
		}
		addr, alpacaPort = found, foundPort
		fmt.Printf("discovered alpaca server at %s:%d\n", addr, alpacaPort)
	}

	base := fmt.Sprintf("http://%s:%d/api/v1/safetymonitor/%d", addr, alpacaPort, *device)
	client := &http.Client{Timeout: *timeout}

	if err := putForm(client, base+"/connected", url.Values{"Connected": {"true"}}); err != nil {
		log.Fatalf("connect: %v", err)
	}

	if err := probe(client, base); err != nil {
		log.Fatalf("probe: %v", err)
	}
	if *watch <= 0 {
		return
	}

	ticker := time.NewTicker(*watch)
	defer ticker.Stop()
	for range ticker.C {
		if err := probe(client, base); err != nil {
			log.Printf("probe: %v", err)
		}
	}
}

func probe(client *http.Client, base string) error {
	var safe bool
	if err := getValue(client, base+"/issafe", &safe); err != nil {
		return err
	}

	var status map[string]any
	if err := getValue(client, base+"/status", &status); err != nil {
		return err
	}

	fmt.Printf("%s  issafe=%v  roof=%v  raw=%v  confidence=%v  last_update=%v\n",
		time.Now().Format("15:04:05"), safe,
		status["RoofStatus"], status["RawStatus"],
		status["Confidence"], status["LastUpdate"])
	if override, _ := status["Override"].(string); override != "" {
		fmt.Printf("  override: %s\n", override)
	}
	if stale, _ := status["Stale"].(bool); stale {
		fmt.Println("  warning: status is stale")
	}
	return nil
}

type envelope struct {
	Value        json.RawMessage
	ErrorNumber  int
	ErrorMessage string
}

func getValue(client *http.Client, target string, out any) error {
	return retry.Do(func() error {
		resp, err := client.Get(target)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%s: HTTP %d", target, resp.StatusCode)
		}
		var env envelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return fmt.Errorf("%s: %w", target, err)
		}
		if env.ErrorNumber != 0 {
			return fmt.Errorf("%s: alpaca error %d: %s", target, env.ErrorNumber, env.ErrorMessage)
		}
		return json.Unmarshal(env.Value, out)
	}, retry.Attempts(maxRetries), retry.Delay(initialBackoff), retry.MaxDelay(maxBackoff))
}

func putForm(client *http.Client, target string, form url.Values) error {
	return retry.Do(func() error {
		req, err := http.NewRequest(http.MethodPut, target, strings.NewReader(form.Encode()))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%s: HTTP %d", target, resp.StatusCode)
		}
		return nil
	}, retry.Attempts(maxRetries), retry.Delay(initialBackoff), retry.MaxDelay(maxBackoff))
}

// discover broadcasts the Alpaca discovery token and waits for the
// first server to answer.
func discover(timeout time.Duration) (string, int, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return "", 0, err
	}
	defer conn.Close()

	payload := []byte(discoveryMessage)
	targets := []*net.UDPAddr{
		{IP: net.IPv4bcast, Port: discoveryPort},
		{IP: net.IPv4(127, 0, 0, 1), Port: discoveryPort},
	}
	for _, target := range targets {
		_, _ = conn.WriteToUDP(payload, target)
	}

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", 0, err
	}
	buf := make([]byte, 1024)
	n, remote, err := conn.ReadFromUDP(buf)
	if err != nil {
		return "", 0, fmt.Errorf("no reply on udp %d: %w", discoveryPort, err)
	}

	var reply struct{ AlpacaPort int }
	if err := json.Unmarshal(buf[:n], &reply); err != nil {
		return "", 0, fmt.Errorf("bad discovery reply %q: %w", buf[:n], err)
	}
	if reply.AlpacaPort < 1 {
		return "", 0, fmt.Errorf("discovery reply missing AlpacaPort: %q", buf[:n])
	}
	return remote.IP.String(), reply.AlpacaPort, nil
}
