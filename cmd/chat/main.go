// Terminal client for the skincare assistant endpoint.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ashureev/skincare-assistant/internal/chat"
	"github.com/ashureev/skincare-assistant/internal/domain"
	"github.com/ashureev/skincare-assistant/internal/render"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
)

var (
	endpoint = flag.String("url", "", "Assistant endpoint URL (default $ASSISTANT_URL or http://localhost:8080/api/chat)")
	apiKey   = flag.String("api-key", "", "Bearer token sent to the endpoint (default $ASSISTANT_API_KEY)")
	timeout  = flag.Duration("timeout", 90*time.Second, "Request timeout")
	width    = flag.Int("width", 100, "Output width in columns")
	maxImage = flag.Int64("max-image-bytes", chat.DefaultMaxImageBytes, "Largest image accepted for upload")
)

func main() {
	_ = godotenv.Load()
	flag.Parse()
	if *endpoint == "" {
		*endpoint = envOr("ASSISTANT_URL", "http://localhost:8080/api/chat")
	}
	if *apiKey == "" {
		*apiKey = os.Getenv("ASSISTANT_API_KEY")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher := chat.NewDispatcher(*endpoint, *apiKey, *timeout, *maxImage)
	session := chat.NewSession("terminal", dispatcher, *maxImage)

	boldGreen := color.New(color.FgGreen, color.Bold).SprintFunc()
	boldMagenta := color.New(color.FgMagenta, color.Bold).SprintFunc()
	toast := color.New(color.FgRed, color.Bold)
	faint := color.New(color.Faint)

	fmt.Println(boldMagenta("Minimalist Skincare Assistant"))
	faint.Printf("Endpoint: %s\n", *endpoint)
	faint.Println("Commands: /image <path> [message], /reset, exit")
	fmt.Println()
	printAssistant(boldMagenta, session.Transcript.Messages()[0])

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(boldGreen("You: "))
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())

		switch {
		case strings.EqualFold(input, "exit"):
			return
		case input == "/reset":
			session.Reset()
			printAssistant(boldMagenta, session.Transcript.Messages()[0])
			continue
		}

		text, img, err := parseInput(input, *maxImage)
		if err != nil {
			toast.Printf("Error: %v\n\n", err)
			continue
		}

		faint.Println("Thinking...")
		_, err = session.Send(ctx, text, img)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			toast.Printf("Error: %s\n", toastMessage(err))
			// A failed turn that reached the backend leaves an apology.
			if !isValidation(err) {
				printLast(boldMagenta, session)
			}
			fmt.Println()
			continue
		}
		printLast(boldMagenta, session)
	}
}

// parseInput splits "/image <path> [message]" into its parts.
func parseInput(input string, maxImage int64) (string, *domain.Image, error) {
	if !strings.HasPrefix(input, "/image") {
		return input, nil, nil
	}
	fields := strings.Fields(input)
	if len(fields) < 2 {
		return "", nil, errors.New("usage: /image <path> [message]")
	}
	img, err := chat.ReadImageFile(fields[1], maxImage)
	if err != nil {
		return "", nil, err
	}
	return strings.Join(fields[2:], " "), img, nil
}

func printLast(label func(a ...interface{}) string, session *chat.Session) {
	msgs := session.Transcript.Messages()
	printAssistant(label, msgs[len(msgs)-1])
}

func printAssistant(label func(a ...interface{}) string, m domain.Message) {
	fmt.Println(label("Assistant:"))
	fmt.Println(render.Terminal(render.Parse(m.Text), *width))
	if m.HasProducts() {
		fmt.Println(render.ProductCards(m.Products, *width))
	}
	fmt.Println()
}

func toastMessage(err error) string {
	if isValidation(err) {
		return err.Error()
	}
	return "Failed to get response"
}

func isValidation(err error) bool {
	return errors.Is(err, chat.ErrEmptyTurn) ||
		errors.Is(err, chat.ErrImageTooLarge) ||
		errors.Is(err, chat.ErrUnsupportedImageType)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
