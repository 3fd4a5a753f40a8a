// cmd/bridge/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"printer-bridge/internal/config"
	"printer-bridge/internal/driver/ble"
	"printer-bridge/internal/driver/serialbt"
	"printer-bridge/internal/printer"
	"printer-bridge/internal/receipt"
	"printer-bridge/internal/routes"
	"printer-bridge/internal/store"
	"printer-bridge/internal/utils"
)

// Application represents the main application
type Application struct {
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server
	store   *store.Store
	manager *printer.Manager
}

func main() {
	app, err := NewApplication()
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, "printer-bridge")
	serviceLogger.LogServiceStart(cfg.App.Version, cfg.App.Environment)

	app := &Application{
		config: cfg,
		logger: logger,
	}

	if err := app.initializeStore(); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	if err := app.initializeManager(); err != nil {
		return nil, fmt.Errorf("failed to initialize printer manager: %w", err)
	}

	if err := app.initializeServer(); err != nil {
		return nil, fmt.Errorf("failed to initialize server: %w", err)
	}

	return app, nil
}

// initializeStore opens the remembered-device store
func (app *Application) initializeStore() error {
	s, err := store.Open(app.config.Storage.Path, app.logger)
	if err != nil {
		return err
	}

	app.store = s
	return nil
}

// initializeManager builds the backend drivers and the connection manager
func (app *Application) initializeManager() error {
	bleDriver, err := ble.NewDriver(&ble.Config{
		ServiceUUID:        app.config.Bluetooth.ServiceUUID,
		CharacteristicUUID: app.config.Bluetooth.CharacteristicUUID,
		ScanTimeout:        app.config.Bluetooth.ScanTimeout,
		ChunkSize:          app.config.Bluetooth.ChunkSize,
	}, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create BLE driver: %w", err)
	}

	serialDriver := serialbt.NewDriver(&serialbt.Config{
		BaudRate:     app.config.Serial.BaudRate,
		DataBits:     app.config.Serial.DataBits,
		StopBits:     app.config.Serial.StopBits,
		Parity:       app.config.Serial.Parity,
		WriteTimeout: app.config.Serial.WriteTimeout,
		PortPatterns: app.config.Serial.PortPatterns,
	}, app.logger)

	// BLE first: on the kiosk hosts the serial enumeration also sees
	// non-printer ports, so it only wins when BLE is absent.
	selected := printer.SelectDriver(app.logger, bleDriver, serialDriver)

	composer := receipt.NewComposer(receipt.Options{
		Width:      app.config.Printer.PaperWidth,
		HeaderName: app.config.Printer.HeaderName,
		Footer:     app.config.Printer.FooterLines,
	})

	app.manager = printer.NewManager(selected, app.store, composer, app.logger)

	app.logger.Info("Printer manager initialized",
		zap.String("driver", selected.Name()),
		zap.String("state", string(app.manager.State())),
	)
	return nil
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() error {
	routerManager := routes.NewRouter(app.config, app.logger, app.manager)
	router := routerManager.SetupRouter()

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
	)
	return nil
}

// Start runs the server and blocks until shutdown
func (app *Application) Start() error {
	go func() {
		app.logger.Info("Starting HTTP server",
			zap.String("address", app.server.Addr),
		)

		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// One silent reconnect attempt at startup so a restarted bridge comes
	// back connected without user action.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if app.manager.TryReconnect(ctx) {
			app.logger.Info("Reconnected to remembered printer at startup")
		}
	}()

	app.waitForShutdown()
	return nil
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	app.shutdown()
}

// shutdown performs graceful shutdown
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, "printer-bridge")
	serviceLogger.LogServiceStop("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	if err := app.manager.Disconnect(ctx); err != nil {
		app.logger.Warn("Printer disconnect on shutdown reported error", zap.Error(err))
	}

	if app.store != nil {
		if err := app.store.Close(); err != nil {
			app.logger.Error("Store close error", zap.Error(err))
		}
	}

	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}
}
