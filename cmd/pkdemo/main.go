// Command pkdemo runs a scripted app session against the PushKit services. It is useful for
// checking a configuration end to end: it starts a client, plays back lifecycle transitions,
// screens and custom events, prints every recorded event and every displayed message, then
// uploads tag groups and flushes analytics before exiting.
//
// Settings come from an optional YAML file (--config) and PKDEMO_ environment variables, for
// instance PKDEMO_APP__KEY or PKDEMO_STORAGE__PATH. The check command loads and validates the
// settings without starting a client.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/urfave/cli"

	pkclient "github.com/pushkit/go-client-sdk"
	"github.com/pushkit/go-client-sdk/internal"
	"github.com/pushkit/go-client-sdk/pkevents"
	"github.com/pushkit/go-client-sdk/pkinapp"
)

var configPath string

var configFlags = []cli.Flag{
	cli.StringFlag{
		Name:        "config, c",
		Usage:       "path to a YAML config file",
		EnvVar:      "PKDEMO_CONFIG",
		Destination: &configPath,
	},
}

func main() {
	app := cli.App{
		Name:      "pkdemo",
		Usage:     "plays a scripted app session against the PushKit services",
		Version:   internal.SDKVersion,
		UsageText: "pkdemo [--config FILE] [command]",
		Commands: []cli.Command{
			{
				Name:   "run",
				Usage:  "runs the scripted session (default)",
				Flags:  configFlags,
				Action: runSession,
			},
			{
				Name:   "check",
				Usage:  "validates the configuration and prints the effective settings",
				Flags:  configFlags,
				Action: checkConfig,
			},
		},
		Action:      runSession,
		Flags:       configFlags,
		HideVersion: true,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatalf("pkdemo: %s", err)
	}
}

func runSession(*cli.Context) error {
	cfg, err := Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return run(ctx, cfg, log.New(os.Stdout, "", log.LstdFlags))
}

func checkConfig(*cli.Context) error {
	cfg, err := Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	describe(cfg, log.New(os.Stdout, "", 0))
	return nil
}

// describe prints the settings that decide which components the client gets.
func describe(cfg *Config, out *log.Logger) {
	out.Println("app key:", cfg.App.Key)
	switch {
	case cfg.Offline:
		out.Println("mode: offline")
	case cfg.Endpoints.Proxy != "":
		out.Println("mode: proxy", cfg.Endpoints.Proxy)
	default:
		out.Println("mode: online")
	}
	if cfg.Storage.Path == "" {
		out.Println("storage: memory")
	} else {
		out.Println("storage: sqlite", cfg.Storage.Path)
	}
	if len(cfg.RemoteData.Files) > 0 {
		out.Println("remote data: files", strings.Join(cfg.RemoteData.Files, ", "))
	} else {
		out.Println("remote data: polling every", cfg.RemoteData.PollInterval)
	}
}

func run(ctx context.Context, cfg *Config, out *log.Logger) error {
	then := time.Now()
	client, err := pkclient.MakeCustomClient(cfg.App.Key, cfg.ClientConfig(consoleDisplay(out)), mustDuration(cfg.App.WaitFor))
	switch {
	case errors.Is(err, pkclient.ErrInitializationTimeout):
		out.Println("remote data not received in", time.Since(then), "- continuing")
	case err != nil && client == nil:
		return err
	case err != nil:
		out.Println("couldn't initialize:", err)
	default:
		out.Println("initialized in", time.Since(then))
	}
	defer func() {
		if err := client.Close(); err != nil {
			out.Println("close:", err)
		}
	}()

	events := client.AddEventListener()
	defer client.RemoveEventListener(events)
	go printEvents(out, events)

	client.SetAnalyticsEnabled(cfg.Analytics.Enabled)
	if cfg.App.ChannelID != "" {
		client.SetChannelID(cfg.App.ChannelID)
	}
	if cfg.App.NamedUser != "" {
		client.SetNamedUserID(cfg.App.NamedUser)
	}
	editor := client.EditChannelTags()
	for group, tags := range cfg.Script.ChannelTags {
		editor.SetTags(group, splitList(tags)...)
	}
	editor.Apply()

	step := mustDuration(cfg.Script.StepInterval)
	steps := scriptSteps(client, cfg.Script, out)
	for _, s := range steps {
		s()
		select {
		case <-ctx.Done():
			out.Println("interrupted")
			return nil
		case <-time.After(step):
		}
	}

	uploadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := client.UploadTagGroups(uploadCtx); err != nil {
		out.Println("tag groups not uploaded:", err)
	}
	if sent := client.LastSendTime(); !sent.IsZero() {
		out.Println("last event upload at", sent.Format(time.RFC3339))
	}
	return nil
}

// scriptSteps plays one foreground session: app init and foreground, the screens in order, the
// custom events, a visit to each region, then background.
func scriptSteps(client *pkclient.Client, script ScriptConfig, out *log.Logger) []func() {
	steps := []func(){client.OnAppInit, client.OnForeground}
	for _, screen := range script.Screens {
		screen := screen
		steps = append(steps, func() { client.TrackScreen(screen) })
	}
	for _, name := range script.Events {
		name := name
		steps = append(steps, func() {
			if err := client.TrackCustomEvent(name, ldvalue.Null(), ldvalue.Null()); err != nil {
				out.Println("skipping event:", err)
			}
		})
	}
	for _, region := range script.Regions {
		region := region
		steps = append(steps,
			func() { client.OnRegionEnter(region) },
			func() { client.OnRegionExit(region) })
	}
	return append(steps, client.OnBackground)
}

func printEvents(out *log.Logger, events <-chan pkevents.Event) {
	for e := range events {
		out.Printf("event %s %s %s", e.Type, e.ID, e.Data.JSONString())
	}
}

func splitList(s string) []string {
	var ret []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			ret = append(ret, item)
		}
	}
	return ret
}

// consoleAdapter "displays" a message by printing it and dismissing it.
type consoleAdapter struct {
	out     *log.Logger
	message pkinapp.Message
}

func consoleDisplay(out *log.Logger) pkinapp.AdapterFactory {
	return pkinapp.AdapterFactoryFunc(func(message pkinapp.Message) (pkinapp.Adapter, error) {
		return consoleAdapter{out: out, message: message}, nil
	})
}

func (a consoleAdapter) Prepare(context.Context) pkinapp.AdapterPrepareResult {
	return pkinapp.AdapterPrepareSuccess
}

func (a consoleAdapter) IsReadyToDisplay() bool { return true }

func (a consoleAdapter) Display(_ context.Context, done func(pkinapp.Resolution)) {
	a.out.Printf("message %s (%s): %s", a.message.ID, a.message.DisplayType, a.message.DisplayContent.JSONString())
	go done(pkinapp.UserDismissedResolution())
}
