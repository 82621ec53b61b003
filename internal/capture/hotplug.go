package capture

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"crewbe/internal/logging"
)

// HotplugWatcher listens for udev remove events for the recording camera and
// reports them so the recorder can fail fast instead of waiting on a dead pipe.
type HotplugWatcher struct {
	device   string
	logger   *slog.Logger
	onRemove func(error)

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewHotplugWatcher creates a watcher for the device node. It returns nil for
// replay devices, which cannot be unplugged.
func NewHotplugWatcher(device string, logger *slog.Logger, onRemove func(error)) *HotplugWatcher {
	device = strings.TrimSpace(device)
	if device == "" || IsReplay(device) {
		return nil
	}
	return &HotplugWatcher{
		device:   device,
		logger:   logging.NewComponentLogger(logger, "hotplug"),
		onRemove: onRemove,
	}
}

// Start begins listening for udev netlink events. Failing to open the netlink
// socket is logged and otherwise ignored.
func (w *HotplugWatcher) Start(ctx context.Context) error {
	if w == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		w.logger.Warn("failed to connect to netlink socket; camera removal will be detected by ffmpeg exit",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the process may open netlink sockets"),
			logging.String(logging.FieldImpact, "unplug detection is slower"),
		)
		return nil
	}

	w.conn = conn
	w.quit = make(chan struct{})
	w.running = true

	quit := w.quit
	go w.monitorLoop(ctx, conn, quit)

	w.logger.Debug("hotplug watcher started", logging.String("device", w.device))
	return nil
}

// Stop shuts down the watcher.
func (w *HotplugWatcher) Stop() {
	if w == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	close(w.quit)
	w.quit = nil
	_ = w.conn.Close()
	w.conn = nil
	w.running = false
}

func (w *HotplugWatcher) monitorLoop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, w.buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			w.handleEvent(uevent)
		case err := <-errs:
			w.logger.Debug("netlink monitor error", logging.Error(err))
		}
	}
}

// buildMatcher matches SUBSYSTEM=video4linux, ACTION=remove.
func (w *HotplugWatcher) buildMatcher() netlink.Matcher {
	action := "remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "video4linux",
		},
	})
	return rules
}

func (w *HotplugWatcher) handleEvent(uevent netlink.UEvent) {
	if !strings.EqualFold(string(uevent.Action), "remove") {
		return
	}
	devname := extractDeviceName(uevent)
	if devname != w.device {
		w.logger.Debug("ignoring removal of other device", logging.String("device", devname))
		return
	}
	w.logger.Warn("camera removed during recording",
		logging.String("device", devname),
		logging.String(logging.FieldEventType, "camera_removed"),
		logging.String(logging.FieldErrorHint, "reconnect the camera and record again"),
		logging.String(logging.FieldImpact, "recording ends and the session fails"),
	)
	if w.onRemove != nil {
		w.onRemove(newError(KindDeviceLost, devname, errors.New("device removed")))
	}
}

func extractDeviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		if !strings.HasPrefix(devname, "/") {
			return "/dev/" + devname
		}
		return devname
	}
	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	return "/dev/" + parts[len(parts)-1]
}
