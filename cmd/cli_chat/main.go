package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chattersphere/internal/broadcast"
	"chattersphere/internal/chat"
	"chattersphere/internal/client"
	"chattersphere/internal/config"
	"chattersphere/internal/domain"
	"chattersphere/internal/llm"
)

func main() {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	cfg, err := config.LoadClientConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := zap.NewExample()
	defer logger.Sync()

	api := client.New(cfg.APIBaseURL, logger)

	user, err := authFlow(ctx, reader, api)
	if err != nil {
		log.Fatalf("autenticacion: %v", err)
	}
	fmt.Printf("Hola %s!\n", user.Name)

	bus, closeBus, err := newBroadcaster(cfg, api, user.ID, logger)
	if err != nil {
		log.Fatalf("broadcaster: %v", err)
	}
	defer closeBus()

	pollInterval := time.Duration(cfg.PollIntervalMS) * time.Millisecond
	dir := chat.NewDirectoryView(api, user.ID, pollInterval, logger)
	if err := dir.Start(ctx); err != nil {
		log.Fatalf("cargar directorio: %v", err)
	}
	defer dir.Close()

	simulator := newSimulator(cfg, logger)

	for {
		contact, ok, err := pickContact(reader, dir)
		if err != nil {
			log.Fatalf("leer input: %v", err)
		}
		if !ok {
			fmt.Println("Hasta luego.")
			return
		}
		opts := chat.Options{
			Store:             api,
			Broadcaster:       bus,
			Topic:             cfg.BroadcastTopic,
			PollInterval:      pollInterval,
			Simulator:         simulator,
			CounterpartOnline: dir.IsOnline,
			Logger:            logger,
		}
		if err := chatFlow(ctx, reader, user, contact, opts); err != nil {
			fmt.Printf("Error en chat: %v\n", err)
		}
	}
}

func authFlow(ctx context.Context, reader *bufio.Reader, api *client.Client) (domain.PublicUser, error) {
	for {
		fmt.Println("===== chattersphere =====")
		fmt.Println("[1] Iniciar sesion")
		fmt.Println("[2] Registrarse")
		fmt.Println("[3] Olvide mi contraseña")
		fmt.Println("[4] Salir")
		choice, err := promptLine(reader, os.Stdout, "Selecciona una opcion: ")
		if err != nil {
			return domain.PublicUser{}, err
		}

		switch choice {
		case "1":
			email, _ := promptLine(reader, os.Stdout, "Email: ")
			password, err := promptPassword(reader, os.Stdout, "Contraseña: ")
			if err != nil {
				return domain.PublicUser{}, err
			}
			user, err := api.Login(ctx, email, password)
			if err != nil {
				fmt.Printf("No se pudo iniciar sesion: %v\n", apiMessage(err))
				continue
			}
			return user, nil
		case "2":
			name, _ := promptLine(reader, os.Stdout, "Nombre: ")
			email, _ := promptLine(reader, os.Stdout, "Email: ")
			password, err := promptPassword(reader, os.Stdout, "Contraseña (min 6): ")
			if err != nil {
				return domain.PublicUser{}, err
			}
			user, err := api.Register(ctx, name, email, password)
			if err != nil {
				fmt.Printf("No se pudo registrar: %v\n", apiMessage(err))
				continue
			}
			return user, nil
		case "3":
			email, _ := promptLine(reader, os.Stdout, "Email: ")
			msg, err := api.ResetPassword(ctx, email)
			if err != nil {
				fmt.Printf("No se pudo enviar: %v\n", apiMessage(err))
				continue
			}
			fmt.Println(msg)
		case "4":
			os.Exit(0)
		default:
			fmt.Println("Opcion invalida.")
		}
	}
}

// pickContact muestra el directorio y devuelve el contacto elegido; ok=false si el usuario sale.
func pickContact(reader *bufio.Reader, dir *chat.DirectoryView) (chat.Contact, bool, error) {
	query := ""
	for {
		contacts := dir.Search(query)
		now := time.Now().UTC()
		fmt.Println("\n--- Usuarios ---")
		if len(contacts) == 0 {
			fmt.Println("(sin resultados)")
		}
		for i, c := range contacts {
			fmt.Println(formatContact(i+1, c, now))
		}
		fmt.Println("Numero para chatear, /buscar <texto>, Enter para refrescar, 'salir' para terminar.")
		line, err := promptLine(reader, os.Stdout, "> ")
		if err != nil {
			return chat.Contact{}, false, err
		}

		switch {
		case line == "":
			continue
		case isExitCommand(line):
			return chat.Contact{}, false, nil
		case strings.HasPrefix(line, "/buscar"):
			query = strings.TrimSpace(strings.TrimPrefix(line, "/buscar"))
			continue
		}

		idx, err := strconv.Atoi(line)
		if err != nil || idx < 1 || idx > len(contacts) {
			fmt.Println("Seleccion invalida.")
			continue
		}
		return contacts[idx-1], true, nil
	}
}

func chatFlow(ctx context.Context, reader *bufio.Reader, self domain.PublicUser, contact chat.Contact, opts chat.Options) error {
	var mu sync.Mutex
	out := newTranscript(self.ID, contact.Name)
	opts.OnUpdate = func(snap chat.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		for _, line := range out.pending(snap.Messages) {
			fmt.Println(line)
		}
	}

	session := chat.NewSession(self.ID, contact.ID, opts)
	defer session.Close()

	fmt.Printf("---- Chat con %s (escribe 'salir' para terminar) ----\n", contact.Name)
	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("abrir conversacion: %w", err)
	}

	for {
		text, err := promptLine(reader, os.Stdout, "")
		if err != nil {
			return fmt.Errorf("leer input: %w", err)
		}
		if isExitCommand(text) {
			fmt.Println("Saliendo del chat...")
			return nil
		}
		session.SetDraft(text)
		if _, err := session.Send(ctx, text); err != nil {
			if errors.Is(err, chat.ErrEmptyMessage) {
				continue
			}
			fmt.Printf("error enviando mensaje: %v\n", apiMessage(err))
		}
		session.SetDraft("")
	}
}

// newBroadcaster elige el canal de eventos segun BROADCAST_BACKEND.
func newBroadcaster(cfg *config.ClientConfig, api *client.Client, userID string, logger *zap.Logger) (broadcast.Broadcaster, func(), error) {
	switch cfg.BroadcastBackend {
	case config.BroadcastWebSocket:
		feed, err := api.EventFeed(userID)
		if err != nil {
			return nil, nil, err
		}
		return feed, func() {}, nil
	case config.BroadcastRedis:
		rc := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return broadcast.NewRedis(rc), func() { _ = rc.Close() }, nil
	case config.BroadcastNATS:
		nb, err := broadcast.NewNATS(cfg.NATSURL, "chattersphere-cli")
		if err != nil {
			return nil, nil, err
		}
		return nb, func() { _ = nb.Close() }, nil
	case config.BroadcastKafka:
		kb, err := broadcast.NewKafka(cfg.KafkaBrokers, logger)
		if err != nil {
			return nil, nil, err
		}
		return kb, func() { _ = kb.Close() }, nil
	default:
		logger.Info("in-process broadcaster: only this client's sessions are notified")
		mb := broadcast.NewMemory()
		return mb, func() { _ = mb.Close() }, nil
	}
}

func newSimulator(cfg *config.ClientConfig, logger *zap.Logger) chat.CounterpartSimulator {
	if !cfg.AutoReply {
		return nil
	}
	canned := chat.NewCannedReplies(nil)
	if cfg.LLMAPIKey == "" {
		return canned
	}
	llmClient := llm.NewHTTPClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, logger)
	return chat.NewLLMReplies(llmClient, "", canned)
}

func apiMessage(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
