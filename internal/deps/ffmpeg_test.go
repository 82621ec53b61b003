package deps

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const encoderListing = `Encoders:
 V..... = Video
 A..... = Audio
 ------
 V....D libvpx               libvpx VP8 (codec vp8)
 V....D libx264              libx264 H.264 / AVC (codec h264)
 A....D aac                  AAC (Advanced Audio Coding)
`

func writeStubFFmpeg(t *testing.T, listing string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), executableName("ffmpeg"))
	script := "#!/bin/sh\ncat <<'LIST'\n" + listing + "LIST\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}
	return path
}

func TestResolveFFmpegPathPrefersConfigured(t *testing.T) {
	if got := ResolveFFmpegPath(" /opt/ffmpeg/bin/ffmpeg "); got != "/opt/ffmpeg/bin/ffmpeg" {
		t.Fatalf("expected configured binary, got %q", got)
	}
}

func TestResolveFFmpegPathFallsBackToPATH(t *testing.T) {
	stub := writeStubFFmpeg(t, encoderListing)
	t.Setenv("PATH", filepath.Dir(stub))
	if got := ResolveFFmpegPath(""); got != stub {
		t.Fatalf("expected PATH lookup %q, got %q", stub, got)
	}
}

func TestCheckFFmpegEncoders(t *testing.T) {
	stub := writeStubFFmpeg(t, encoderListing)
	tests := []struct {
		name      string
		withAudio bool
		available bool
		missing   []string
	}{
		{"video only", false, true, nil},
		{"video and audio", true, false, []string{AudioEncoder}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status := CheckFFmpeg(context.Background(), stub, tc.withAudio)
			if status.Available != tc.available {
				t.Fatalf("expected available=%v, got %+v", tc.available, status)
			}
			if !reflect.DeepEqual(status.Missing, tc.missing) {
				t.Fatalf("expected missing %v, got %v", tc.missing, status.Missing)
			}
			if !tc.available && !strings.Contains(status.Detail, AudioEncoder) {
				t.Fatalf("expected detail to name the missing encoder, got %q", status.Detail)
			}
		})
	}
}

func TestCheckFFmpegNotFound(t *testing.T) {
	t.Setenv("PATH", "")
	status := CheckFFmpeg(context.Background(), "", false)
	if status.Available {
		t.Fatal("expected ffmpeg resolution to fail")
	}
	if !strings.Contains(status.Detail, "not found") {
		t.Fatalf("unexpected detail %q", status.Detail)
	}
}

func TestParseEncodersSkipsLegend(t *testing.T) {
	encoders := parseEncoders([]byte(encoderListing))
	for _, name := range []string{"libvpx", "libx264", "aac"} {
		if !encoders[name] {
			t.Fatalf("expected %s in %v", name, encoders)
		}
	}
	if encoders["="] || encoders["libvpx VP8"] || len(encoders) != 3 {
		t.Fatalf("unexpected encoders %v", encoders)
	}
}
