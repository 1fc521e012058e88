// main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"iron-verdict/client"
	"iron-verdict/demoserver"
	"iron-verdict/logger"
	"iron-verdict/models"
	"iron-verdict/services"
)

func main() {
	// .env is optional; real config comes from the environment
	if err := godotenv.Load(); err != nil {
		logger.Debug.Printf("no .env file loaded: %v", err)
	}
	logger.SetLogLevel(os.Getenv("APP_ENV"))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := demoserver.NewServer(demoserver.NewSessionManager(nil))
	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info.Printf("listening on :%s", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error.Printf("server stopped: %v", err)
			os.Exit(1)
		}
	}()

	baseURL := "http://localhost:" + port
	code := createDemoSession(baseURL)

	fmt.Printf("Session code: %s\n", code)
	fmt.Printf("Invite link:  %s\n", services.InviteURL(code))
	writeInviteQR(code)

	if os.Getenv("DEMO_MODE") == "true" {
		go runScriptedLift(baseURL, code)
	}

	// run until interrupted, then tell connected clients we are going away
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info.Println("shutting down")
	server.Shutdown()
	_ = httpServer.Close()
}

// createDemoSession creates the session this process serves, retrying
// briefly while the listener comes up.
func createDemoSession(baseURL string) string {
	api := &services.SessionAPI{BaseURL: baseURL}
	var (
		code string
		err  error
	)
	for i := 0; i < 20; i++ {
		code, err = api.CreateSession(context.Background(), "Demo Meet")
		if err == nil {
			return code
		}
		time.Sleep(100 * time.Millisecond)
	}
	logger.Error.Printf("could not create demo session: %v", err)
	os.Exit(1)
	return ""
}

// writeInviteQR drops the invite QR code next to the binary so it can
// be shown on a screen at the venue.
func writeInviteQR(code string) {
	png, err := services.GenerateInviteQR(code, 256)
	if err != nil {
		logger.Warn.Printf("could not render invite QR: %v", err)
		return
	}
	path := "invite-" + code + ".png"
	if err := os.WriteFile(path, png, 0600); err != nil {
		logger.Warn.Printf("could not write %s: %v", path, err)
		return
	}
	fmt.Printf("Invite QR:    %s\n", path)
}

// runScriptedLift connects an in-process display and three judges and
// plays through one scored lift, so a single binary demonstrates the
// whole flow.
func runScriptedLift(baseURL, code string) {
	wsURL := "ws" + baseURL[len("http"):] + "/ws"

	connect := func(role models.Role) *client.SessionClient {
		c, err := client.NewSessionClient(client.Config{
			ServerURL:   wsURL,
			SessionCode: code,
			Role:        role,
			Notify: func(text string) {
				fmt.Printf("[%s] %s\n", role.DisplayName(), text)
			},
		})
		if err != nil {
			logger.Error.Printf("demo client %s: %v", role, err)
			os.Exit(1)
		}
		c.Connect()
		return c
	}

	display := connect(models.RoleDisplay)
	left := connect(models.RoleLeftJudge)
	center := connect(models.RoleCenterJudge)
	right := connect(models.RoleRightJudge)
	time.Sleep(500 * time.Millisecond)

	fmt.Println("demo: head judge starts the attempt clock")
	center.StartTimer()
	time.Sleep(2 * time.Second)

	fmt.Println("demo: judges cast their verdicts")
	left.SelectColor(models.VoteWhite)
	left.LockVote()
	right.SelectColor(models.VoteWhite)
	right.LockVote()
	center.SelectColor(models.VoteRed)
	center.SelectReason("Depth")
	center.LockVote()
	time.Sleep(500 * time.Millisecond)

	snap := display.Display().Snapshot()
	verdict := "no lift"
	if snap.Votes.IsValidLift() {
		verdict = "good lift"
	}
	fmt.Printf("demo: result %s\n", verdict)
	for _, pos := range models.JudgePositions {
		if vote := snap.Votes[pos]; vote != nil {
			fmt.Printf("demo:   %s: %s %s\n", pos, vote.Color, snap.Reasons[pos])
		}
	}

	fmt.Println("demo: head judge resets for the next lift")
	center.NextLift()
}
