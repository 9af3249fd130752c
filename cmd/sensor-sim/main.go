// sensor-sim serves a scripted pressure-sensor feed over WebSocket for
// development without hardware. Each frame is a text line in the sensor's
// wire format:
//
//	SensorVal = 100,110,120,210
//
// The simulator loops through a stance script, e.g.
// "neutral:5,forward:2,neutral:1,backward:2" (stance:seconds). Stdin commands
// override the script: "neutral", "forward" or "backward" hold that stance,
// "ramp" leans from neutral into forward over three seconds, "auto" resumes
// the script.
package main

import (
	"bufio"
	"flag"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type stance struct {
	name     string
	channels [4]int
	duration time.Duration
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func main() {
	addr := flag.String("addr", "127.0.0.1:8181", "listen address")
	path := flag.String("path", "/steering", "websocket path")
	interval := flag.Duration("interval", 20*time.Millisecond, "frame interval")
	script := flag.String("script", "neutral:5,forward:2,neutral:1,backward:2", "stance script as name:seconds pairs")
	neutral := flag.String("neutral", "100,110,120,210", "neutral stance channel values")
	forward := flag.String("forward", "110,120,130,208", "forward stance channel values")
	backward := flag.String("backward", "90,100,110,212", "backward stance channel values")
	jitter := flag.Int("jitter", 1, "random per-channel jitter")
	flag.Parse()

	stances := map[string][4]int{
		"neutral":  parseChannels(*neutral),
		"forward":  parseChannels(*forward),
		"backward": parseChannels(*backward),
	}
	schedule := parseScript(*script, stances)
	if len(schedule) == 0 {
		log.Fatal("script is empty")
	}

	ov := &override{}
	go readCommands(os.Stdin, stances, ov)

	http.HandleFunc(*path, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("upgrade error: %v", err)
			return
		}
		log.Printf("client connected from %s", r.RemoteAddr)
		serve(conn, schedule, ov, *interval, *jitter)
		log.Printf("client disconnected")
	})

	log.Printf("serving simulated sensor on ws://%s%s", *addr, *path)
	log.Fatal(http.ListenAndServe(*addr, nil))
}

// override is the stance forced from stdin, taking precedence over the
// script while set.
type override struct {
	mu     sync.Mutex
	stance *stance

	rampStart, rampEnd time.Time
	rampFrom, rampTo   [4]int
}

// current returns the overridden channels for now, or ok=false when the
// script should run.
func (o *override) current(now time.Time) (channels [4]int, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.rampEnd.IsZero() {
		if now.After(o.rampEnd) {
			o.rampEnd = time.Time{}
			o.stance = &stance{name: "forward", channels: o.rampTo}
		} else {
			f := float64(now.Sub(o.rampStart)) / float64(o.rampEnd.Sub(o.rampStart))
			for i := range channels {
				channels[i] = o.rampFrom[i] + int(f*float64(o.rampTo[i]-o.rampFrom[i]))
			}
			return channels, true
		}
	}

	if o.stance == nil {
		return channels, false
	}
	return o.stance.channels, true
}

// readCommands applies stdin stance commands until EOF.
func readCommands(r *os.File, stances map[string][4]int, ov *override) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		if cmd == "" {
			continue
		}

		ov.mu.Lock()
		switch cmd {
		case "auto":
			ov.stance = nil
			ov.rampEnd = time.Time{}
			log.Printf("resuming script")
		case "ramp":
			ov.rampStart = time.Now()
			ov.rampEnd = ov.rampStart.Add(3 * time.Second)
			ov.rampFrom = stances["neutral"]
			ov.rampTo = stances["forward"]
			log.Printf("ramping neutral -> forward")
		default:
			channels, ok := stances[cmd]
			if !ok {
				log.Printf("unknown command %q (want neutral, forward, backward, ramp or auto)", cmd)
				break
			}
			ov.stance = &stance{name: cmd, channels: channels}
			ov.rampEnd = time.Time{}
			log.Printf("holding stance: %s", cmd)
		}
		ov.mu.Unlock()
	}
}

// serve streams frames until the client goes away.
func serve(conn *websocket.Conn, schedule []stance, ov *override, interval time.Duration, jitter int) {
	defer conn.Close()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	idx := 0
	stanceEnd := time.Now().Add(schedule[0].duration)

	for range ticker.C {
		now := time.Now()
		if now.After(stanceEnd) {
			idx = (idx + 1) % len(schedule)
			stanceEnd = now.Add(schedule[idx].duration)
			log.Printf("stance: %s", schedule[idx].name)
		}

		channels := schedule[idx].channels
		if forced, ok := ov.current(now); ok {
			channels = forced
		}

		frame := formatFrame(channels, jitter)
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			return
		}
	}
}

func formatFrame(channels [4]int, jitter int) string {
	parts := make([]string, len(channels))
	for i, v := range channels {
		if jitter > 0 {
			v += rand.Intn(2*jitter+1) - jitter
		}
		parts[i] = strconv.Itoa(v)
	}
	return "SensorVal = " + strings.Join(parts, ",")
}

func parseChannels(s string) [4]int {
	fields := strings.Split(s, ",")
	if len(fields) != 4 {
		log.Fatalf("expected 4 channel values, got %q", s)
	}

	var out [4]int
	for i, f := range fields {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			log.Fatalf("bad channel value %q: %v", f, err)
		}
		out[i] = v
	}
	return out
}

func parseScript(script string, stances map[string][4]int) []stance {
	var schedule []stance
	for _, entry := range strings.Split(script, ",") {
		name, secs, ok := strings.Cut(strings.TrimSpace(entry), ":")
		if !ok {
			log.Fatalf("bad script entry %q, want name:seconds", entry)
		}
		channels, ok := stances[name]
		if !ok {
			log.Fatalf("unknown stance %q", name)
		}
		seconds, err := strconv.ParseFloat(secs, 64)
		if err != nil || seconds <= 0 {
			log.Fatalf("bad duration in %q", entry)
		}
		schedule = append(schedule, stance{
			name:     name,
			channels: channels,
			duration: time.Duration(seconds * float64(time.Second)),
		})
	}
	return schedule
}
