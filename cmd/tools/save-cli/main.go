package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/annel0/commoncore/internal/config"
	"github.com/annel0/commoncore/internal/eventbus"
	"github.com/annel0/commoncore/internal/gamestate"
	"github.com/annel0/commoncore/internal/storage"
)

const timeFormat = "2006-01-02T15:04:05Z"

func main() {
	var (
		configPath = flag.String("config", "", "YAML configuration (default $COMMONCORE_CONFIG)")
		driver     = flag.String("driver", "", "Override storage driver: file, badger, redis, maria, mongo")
		path       = flag.String("path", "", "Override storage path for file/badger")
		command    = flag.String("cmd", "list", "Command: list, dump, delete, tail")
		slot       = flag.String("slot", "", "Slot name for dump/delete")
		summary    = flag.Bool("summary", false, "dump: print counts instead of full JSON")
		natsURL    = flag.String("nats", "", "tail: NATS URL (default from config or $NATS_URL)")
		eventTypes = flag.String("types", "", "tail: event types filter (comma-separated)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}
	if *driver != "" {
		cfg.Storage.Driver = *driver
	}
	if *path != "" {
		cfg.Storage.Path = *path
	}
	if *natsURL != "" {
		cfg.EventBus.URL = *natsURL
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *command == "tail" {
		if err := tailEvents(ctx, cfg.EventBus, parseStringList(*eventTypes)); err != nil {
			log.Fatalf("❌ Tail failed: %v", err)
		}
		return
	}

	if cfg.Storage.Driver == "memory" {
		log.Fatalf("❌ Storage driver %q keeps saves inside the server process; use -driver", cfg.Storage.Driver)
	}
	repo, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("❌ Failed to open storage: %v", err)
	}
	defer repo.Close()

	switch *command {
	case "list":
		err = listSlots(ctx, repo)
	case "dump":
		err = dumpSlot(ctx, repo, *slot, *summary)
	case "delete":
		err = deleteSlot(ctx, repo, *slot)
	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: list, dump, delete, tail")
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("❌ %s failed: %v", *command, err)
	}
}

// listSlots выводит слоты хранилища
func listSlots(ctx context.Context, repo storage.SaveRepo) error {
	slots, err := repo.List(ctx)
	if err != nil {
		return err
	}
	if len(slots) == 0 {
		fmt.Println("📭 No save slots")
		return nil
	}

	fmt.Printf("%-20s %-20s %-22s %8s  %s\n", "SLOT", "SCENE", "SAVED AT", "SIZE", "ID")
	for _, s := range slots {
		fmt.Printf("%-20s %-20s %-22s %8d  %s\n",
			s.Slot, s.CurrentScene, s.SavedAt.UTC().Format(timeFormat), s.Size, s.ID)
	}
	fmt.Printf("\n📊 Total slots: %d\n", len(slots))
	return nil
}

// dumpSlot печатает содержимое слота
func dumpSlot(ctx context.Context, repo storage.SaveRepo, slot string, summary bool) error {
	if slot == "" {
		return errors.New("-slot is required")
	}
	store, found, err := repo.Load(ctx, slot)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", storage.ErrSlotNotFound, slot)
	}

	if summary {
		printSummary(slot, store)
		return nil
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(store)
}

func printSummary(slot string, store *gamestate.Store) {
	fmt.Printf("💾 Slot %s, current scene %q, last uid %d\n", slot, store.CurrentScene, store.LastUID)
	for _, name := range store.Scenes() {
		objects, _ := store.LocalObjects(name)
		bag, _ := store.LocalData(name)
		fmt.Printf("  🗺️ %s: %d objects, %d data keys\n", name, len(objects), len(bag))
	}

	byScene := make(map[string]int)
	for _, rec := range store.MotileObjects() {
		byScene[rec.Scene]++
	}
	scenes := make([]string, 0, len(byScene))
	for s := range byScene {
		scenes = append(scenes, s)
	}
	sort.Strings(scenes)
	fmt.Printf("  🚚 motile: %d\n", len(store.MotileObjects()))
	for _, s := range scenes {
		fmt.Printf("     %s: %d\n", s, byScene[s])
	}

	if store.Player() != nil {
		fmt.Println("  🧍 player: saved")
	} else {
		fmt.Println("  🧍 player: none")
	}
}

func deleteSlot(ctx context.Context, repo storage.SaveRepo, slot string) error {
	if slot == "" {
		return errors.New("-slot is required")
	}
	if err := repo.Delete(ctx, slot); err != nil {
		return err
	}
	fmt.Printf("🗑️ Slot %s deleted\n", slot)
	return nil
}

// tailEvents выводит события сцен из JetStream до Ctrl+C
func tailEvents(ctx context.Context, cfg config.EventBusConfig, types []string) error {
	url := cfg.GetURL()
	if url == "" {
		return errors.New("NATS URL is not configured (-nats or $NATS_URL)")
	}
	bus, err := eventbus.NewJetStreamBus(url, cfg.Stream, time.Duration(cfg.Retention)*time.Hour)
	if err != nil {
		return err
	}
	defer bus.Close()

	fmt.Printf("🎬 Tailing events from %s (types: %v)\n", url, types)
	sub, err := bus.Subscribe(ctx, eventbus.Filter{Types: types}, func(_ context.Context, ev *eventbus.Envelope) {
		printEvent(ev)
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	<-ctx.Done()
	stats := bus.Metrics()
	fmt.Printf("\n📊 Total events: %d\n", stats.Consumed)
	return nil
}

func printEvent(ev *eventbus.Envelope) {
	ts := ev.Timestamp.UTC().Format(timeFormat)
	se, err := eventbus.DecodeSceneEvent(ev)
	if err != nil || se.Scene == "" {
		fmt.Printf("[%s] %s src=%s size=%dB\n", ts, ev.EventType, ev.Source, len(ev.Payload))
		return
	}
	fmt.Printf("[%s] %-15s scene=%-12s saved=%d restored=%d spawned=%d skipped=%d %.1fms",
		ts, ev.EventType, se.Scene, se.Saved, se.Restored, se.Spawned, se.Skipped, se.DurationMs)
	if len(se.Reasons) > 0 {
		fmt.Printf(" reasons=%v", se.Reasons)
	}
	if len(se.Extra) > 0 {
		fmt.Printf(" extra=%v", se.Extra)
	}
	fmt.Println()
}

// parseStringList парсит строку со значениями, разделёнными запятыми
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
