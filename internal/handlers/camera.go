package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"orbitspeed/internal/config"
	"orbitspeed/internal/logger"
	"orbitspeed/internal/services"
)

const (
	maxFrameBytes = 16 << 20
	udpPacketSize = 2048
)

var (
	jpegHeader = []byte{0xFF, 0xD8}
	jpegFooter = []byte{0xFF, 0xD9}
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// FrameSink receives complete encoded frames from a camera.
type FrameSink interface {
	HandleCameraImage(image []byte, camera string) error
}

func logFrameError(logger *logger.Logger, camera string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, services.ErrFrameThrottled):
		// expected for cameras streaming faster than the capture interval
	default:
		logger.Warning("Camera %s: frame rejected: %v", camera, err)
	}
}

// CameraWebsocketHandler accepts binary frames pushed by a camera over a websocket.
func CameraWebsocketHandler(sink FrameSink, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		camera := r.URL.Query().Get("id")
		if camera == "" {
			http.Error(w, "id parameter is required", http.StatusBadRequest)
			return
		}

		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		defer connection.Close()
		connection.SetReadLimit(maxFrameBytes)
		connection.SetReadDeadline(time.Now().Add(60 * time.Second))
		connection.SetPongHandler(func(appData string) error {
			connection.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})

		logger.Info("Camera connected: %s", camera)

		for {
			_, msg, err := connection.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Camera %s disconnected", camera)
				} else {
					logger.Warning("Camera %s connection ended: %v", camera, err)
				}
				return
			}
			connection.SetReadDeadline(time.Now().Add(60 * time.Second))
			logFrameError(logger, camera, sink.HandleCameraImage(msg, camera))
		}
	}
}

// UploadHandler accepts a single encoded frame as the request body.
func UploadHandler(sink FrameSink, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		camera := r.URL.Query().Get("camera")
		if camera == "" {
			http.Error(w, "camera parameter is required", http.StatusBadRequest)
			return
		}

		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFrameBytes))
		if err != nil {
			http.Error(w, "Unable to read frame", http.StatusBadRequest)
			return
		}

		err = sink.HandleCameraImage(data, camera)
		switch {
		case err == nil:
			w.WriteHeader(http.StatusAccepted)
		case errors.Is(err, services.ErrFrameThrottled):
			http.Error(w, err.Error(), http.StatusTooManyRequests)
		case errors.Is(err, services.ErrManagerStopped):
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		default:
			logFrameError(logger, camera, err)
			writeError(w, logger, err)
		}
	}
}

// frameAssembler rebuilds JPEG frames split across UDP packets. A packet
// starting with SOI begins a frame; a packet ending with EOI completes it.
type frameAssembler struct {
	buffers map[string]*bytes.Buffer
}

func newFrameAssembler() *frameAssembler {
	return &frameAssembler{buffers: make(map[string]*bytes.Buffer)}
}

// Add appends a packet for camera and returns the frame it completes, if any.
func (a *frameAssembler) Add(camera string, data []byte) ([]byte, bool) {
	imgBuffer, ok := a.buffers[camera]
	if !ok {
		imgBuffer = new(bytes.Buffer)
		a.buffers[camera] = imgBuffer
	}

	if bytes.HasPrefix(data, jpegHeader) {
		imgBuffer.Reset()
	} else if imgBuffer.Len() == 0 {
		// continuation of a frame whose start was lost
		return nil, false
	}
	imgBuffer.Write(data)

	if imgBuffer.Len() > maxFrameBytes {
		imgBuffer.Reset()
		return nil, false
	}

	if !bytes.HasSuffix(data, jpegFooter) {
		return nil, false
	}
	fullFrame := make([]byte, imgBuffer.Len())
	copy(fullFrame, imgBuffer.Bytes())
	imgBuffer.Reset()
	return fullFrame, true
}

// cameraName resolves a UDP sender to its configured name.
func cameraName(names map[string]string, addr *net.UDPAddr) string {
	ip := addr.IP.String()
	if name, ok := names[ip]; ok {
		return name
	}
	return "unknown_" + ip
}

// UDPCameraHandler listens for UDP packets from cameras, reconstructs JPEG
// frames and forwards complete frames to sink until ctx is done.
func UDPCameraHandler(ctx context.Context, sink FrameSink, logger *logger.Logger, config *config.Config) error {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: config.CamerasPort})
	if err != nil {
		return fmt.Errorf("failed to listen on UDP port %d: %w", config.CamerasPort, err)
	}
	return serveUDP(ctx, conn, sink, logger, config.CameraNames)
}

func serveUDP(ctx context.Context, conn *net.UDPConn, sink FrameSink, logger *logger.Logger, names map[string]string) error {
	defer conn.Close()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	logger.Info("UDP camera handler started on %s", conn.LocalAddr())
	buffer := make([]byte, udpPacketSize)
	assembler := newFrameAssembler()

	for {
		n, remoteAddr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("UDP camera handler stopped")
				return nil
			}
			logger.Error("Error reading UDP packet: %v", err)
			continue
		}

		camera := cameraName(names, remoteAddr)
		if frame, ok := assembler.Add(camera, buffer[:n]); ok {
			logFrameError(logger, camera, sink.HandleCameraImage(frame, camera))
		}
	}
}
