// Command fsstream connects a FlagSync client and prints every synchronization event until it is
// interrupted. It is configured with FLAGSYNC_* environment variables, optionally from a .env file.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	fsclient "github.com/flagsync/go-client-sdk"
	"github.com/flagsync/go-client-sdk/interfaces"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	then := time.Now()
	client, err := fsclient.MakeCustomClient(cfg.SDKKey, cfg.UserKeys[0], cfg.clientConfig(), cfg.InitTimeout)
	if client == nil {
		log.Fatal(err)
	}
	defer client.Close()
	if err != nil {
		log.Println("client not ready:", err)
	} else {
		log.Println("initialized in", time.Since(then))
	}

	watchKey(ctx, client.MainClient())
	for _, key := range cfg.UserKeys[1:] {
		kc, err := client.Client(key)
		if err != nil {
			log.Fatal(err)
		}
		watchKey(ctx, kc)
	}

	statuses := client.GetSyncStatusProvider().AddStatusListener()
	log.Println("status:", client.GetSyncStatusProvider().GetStatus())
	for {
		select {
		case s, ok := <-statuses:
			if !ok {
				return
			}
			log.Println("status:", s)
		case <-ctx.Done():
			log.Println("shutting down")
			return
		}
	}
}

func watchKey(ctx context.Context, kc *fsclient.KeyClient) {
	events := kc.AddEventListener()
	if kc.IsReady() {
		printKey(kc, "ready")
	}
	go func() {
		for {
			select {
			case e, ok := <-events:
				if !ok {
					return
				}
				printKey(kc, eventName(e))
			case <-ctx.Done():
				return
			}
		}
	}()
}

func eventName(e interfaces.SdkEvent) string {
	switch e {
	case interfaces.SdkReadyFromCache:
		return "ready from cache"
	case interfaces.SdkReady:
		return "ready"
	case interfaces.SdkUpdated:
		return "updated"
	}
	return string(e)
}

func printKey(kc *fsclient.KeyClient, what string) {
	log.Printf("[%s] %s: %d definitions, segments %v, large segments %v",
		kc.Key(), what, len(kc.DefinitionNames()), kc.Segments(), kc.LargeSegments())
}
