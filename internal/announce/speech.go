package announce

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
)

const (
	speechRate   = 150 // words per minute
	speechVolume = 0.8
)

// Speaker turns text into audio. Speak blocks until playback finishes.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// CommandSpeaker shells out to a local text-to-speech binary, one utterance at a time.
type CommandSpeaker struct {
	path string
	args func(text string) []string
	mu   sync.Mutex
}

var knownSpeechCommands = []string{"espeak-ng", "espeak", "say", "spd-say"}

// DetectSpeaker resolves the speech backend once. An explicit command wins over
// auto-detection; ok is false when nothing usable is installed.
func DetectSpeaker(command string) (*CommandSpeaker, bool) {
	candidates := knownSpeechCommands
	if command != "" {
		candidates = []string{command}
	}

	for _, name := range candidates {
		path, err := exec.LookPath(name)
		if err != nil {
			continue
		}
		return NewCommandSpeaker(path), true
	}
	return nil, false
}

func NewCommandSpeaker(path string) *CommandSpeaker {
	return &CommandSpeaker{path: path, args: speechArgs(filepath.Base(path))}
}

func (s *CommandSpeaker) Name() string { return filepath.Base(s.path) }

func (s *CommandSpeaker) Speak(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := exec.CommandContext(ctx, s.path, s.args(text)...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", s.Name(), err, out)
	}
	return nil
}

func speechArgs(binary string) func(string) []string {
	switch binary {
	case "espeak", "espeak-ng":
		amplitude := strconv.Itoa(int(speechVolume * 200))
		return func(text string) []string {
			return []string{"-s", strconv.Itoa(speechRate), "-a", amplitude, text}
		}
	case "say":
		return func(text string) []string {
			return []string{"-r", strconv.Itoa(speechRate), text}
		}
	case "spd-say":
		volume := strconv.Itoa(int(speechVolume*200) - 100)
		return func(text string) []string {
			return []string{"-w", "-i", volume, text}
		}
	default:
		return func(text string) []string { return []string{text} }
	}
}
