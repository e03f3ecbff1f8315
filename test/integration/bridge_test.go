// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

//go:build integration

package integration

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/tickbridge/tickbridge/internal/camstream"
	"github.com/tickbridge/tickbridge/internal/server"
	"github.com/tickbridge/tickbridge/internal/sse"
)

var _ = Describe("Bridge", func() {
	var env *testEnv

	BeforeEach(func() {
		var err error
		env, err = setupTestEnv()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if env != nil {
			env.cleanup()
		}
	})

	Describe("Request queue", func() {
		It("answers a burst of concurrent requests on the main loop", func() {
			const burst = 25
			var wg sync.WaitGroup
			statuses := make([]int, burst)
			ids := make([]string, burst)
			for i := range burst {
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer GinkgoRecover()
					resp, err := env.get(fmt.Sprintf("/api/v1/colonists/%d", 101+i%3))
					Expect(err).NotTo(HaveOccurred())
					_ = resp.Body.Close()
					statuses[i] = resp.StatusCode
					ids[i] = resp.Header.Get(server.RequestIDHeader)
				}()
			}
			wg.Wait()

			seen := make(map[string]bool, burst)
			for i := range burst {
				Expect(statuses[i]).To(Equal(http.StatusOK))
				_, err := ulid.Parse(ids[i])
				Expect(err).NotTo(HaveOccurred())
				seen[ids[i]] = true
			}
			Expect(seen).To(HaveLen(burst))
		})

		It("returns the standard error body for unknown routes", func() {
			resp, err := env.get("/api/v1/nowhere")
			Expect(err).NotTo(HaveOccurred())

			var body map[string]string
			Expect(decode(resp, &body)).To(Succeed())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(body).To(HaveKey("error"))
		})

		It("applies game commands before the next state read", func() {
			resp, err := env.post("/api/v1/game/speed/3", "")
			Expect(err).NotTo(HaveOccurred())
			_ = resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			resp, err = env.get("/api/v1/game/state")
			Expect(err).NotTo(HaveOccurred())
			var state map[string]any
			Expect(decode(resp, &state)).To(Succeed())
			Expect(state["speed"]).To(BeEquivalentTo(3))
		})
	})

	Describe("Event streaming", func() {
		It("streams the handshake and extension events over SSE", func() {
			ctx, cancel := context.WithTimeout(env.ctx, 10*time.Second)
			defer cancel()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.base+"/api/v1/events?events=job*", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer func() { _ = resp.Body.Close() }()
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("text/event-stream"))

			reader := sse.NewReader(resp.Body)
			first, err := reader.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Event).To(Equal(sse.EventConnected))
			second, err := reader.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Event).To(Equal(sse.EventGameState))

			post, err := env.post("/api/v1/jobs/queue", `{"type":"Mining","colonist":"Ana"}`)
			Expect(err).NotTo(HaveOccurred())
			_ = post.Body.Close()
			Expect(post.StatusCode).To(Equal(http.StatusCreated))

			for {
				frame, err := reader.Next()
				Expect(err).NotTo(HaveOccurred())
				if frame.Event == sse.EventHeartbeat {
					continue
				}
				Expect(frame.Event).To(Equal("jobQueued"))
				Expect(string(frame.Data)).To(ContainSubstring(`"Mining"`))
				break
			}
		})

		It("fans out to WebSocket clients and lists them", func() {
			url := "ws" + strings.TrimPrefix(env.base, "http") + "/api/v1/ws?events=gameUpdate"
			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			Expect(err).NotTo(HaveOccurred())
			defer func() { _ = conn.Close() }()
			Expect(conn.SetReadDeadline(time.Now().Add(10 * time.Second))).To(Succeed())

			var msg struct {
				Event string `json:"event"`
			}
			Expect(conn.ReadJSON(&msg)).To(Succeed())
			Expect(msg.Event).To(Equal(sse.EventConnected))

			Eventually(func() float64 {
				resp, err := env.get("/api/v1/events/clients")
				if err != nil {
					return -1
				}
				var body map[string]any
				if decode(resp, &body) != nil {
					return -1
				}
				n, _ := body["count"].(float64)
				return n
			}).WithTimeout(5 * time.Second).Should(BeNumerically("==", 1))

			for {
				Expect(conn.ReadJSON(&msg)).To(Succeed())
				if msg.Event == sse.EventGameUpdate {
					break
				}
				Expect(msg.Event).To(BeElementOf(sse.EventGameState, sse.EventHeartbeat))
			}
		})
	})

	Describe("Camera stream", func() {
		It("sends JPEG frames to the configured UDP target", func() {
			pc, err := net.ListenPacket("udp", "127.0.0.1:0")
			Expect(err).NotTo(HaveOccurred())
			defer func() { _ = pc.Close() }()
			port := pc.LocalAddr().(*net.UDPAddr).Port

			resp, err := env.post(fmt.Sprintf(
				"/api/v1/stream/setup?ip=127.0.0.1&port=%d&frame_width=160&frame_height=90&fps=30&quality=60", port), "")
			Expect(err).NotTo(HaveOccurred())
			_ = resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			resp, err = env.post("/api/v1/stream/start", "")
			Expect(err).NotTo(HaveOccurred())
			_ = resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			Expect(pc.SetReadDeadline(time.Now().Add(5 * time.Second))).To(Succeed())
			var (
				r     camstream.Reassembler
				frame []byte
				buf   = make([]byte, camstream.MaxPacketSize)
			)
			for frame == nil {
				n, _, err := pc.ReadFrom(buf)
				Expect(err).NotTo(HaveOccurred())
				p, err := camstream.DecodePacket(bytes.Clone(buf[:n]))
				Expect(err).NotTo(HaveOccurred())
				if f, ok := r.Add(p); ok {
					frame = f
				}
			}
			img, err := jpeg.Decode(bytes.NewReader(frame))
			Expect(err).NotTo(HaveOccurred())
			Expect(img.Bounds().Dx()).To(Equal(160))
			Expect(img.Bounds().Dy()).To(Equal(90))

			resp, err = env.post("/api/v1/stream/stop", "")
			Expect(err).NotTo(HaveOccurred())
			_ = resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			resp, err = env.get("/api/v1/stream/status")
			Expect(err).NotTo(HaveOccurred())
			var status camstream.Status
			Expect(decode(resp, &status)).To(Succeed())
			Expect(status.IsStreaming).To(BeFalse())
			Expect(status.FramesSent).To(BeNumerically(">=", 1))
		})
	})

	Describe("Docs", func() {
		It("renders routes, events and extensions as Markdown", func() {
			resp, err := env.get("/api/v1/docs?format=markdown")
			Expect(err).NotTo(HaveOccurred())
			defer func() { _ = resp.Body.Close() }()

			var lines []string
			sc := bufio.NewScanner(resp.Body)
			for sc.Scan() {
				lines = append(lines, sc.Text())
			}
			doc := strings.Join(lines, "\n")
			Expect(doc).To(ContainSubstring("`/api/v1/stream/start`"))
			Expect(doc).To(ContainSubstring("`/api/v1/jobs/queue`"))
			Expect(doc).To(ContainSubstring("`jobQueued`"))
			Expect(doc).To(ContainSubstring("`colonist_ate`"))
		})
	})

	Describe("Shutdown", func() {
		It("stops accepting requests", func() {
			addr := env.srv.Addr()
			env.cleanup()
			env = nil

			_, err := http.Get("http://" + addr + "/api/v1/version")
			Expect(err).To(HaveOccurred())
		})
	})
})
