// heytea-diy runs the local relay used by the HeyTea DIY cup designer, plus a
// small CLI that drives the same flow without a browser.
//
// Subcommands:
//
//	serve      start the relay (default)
//	edit       apply filters to PNG designs
//	sms-send   request an SMS verification code through a running relay
//	sms-login  log in with the code and save the credentials
//	upload     sign and upload a design through a running relay
//
// Startup sequence of serve:
//  1. Load configuration (JSON file, then .env / HEYTEA_* overrides).
//  2. Build the vendor client; bad AES secrets stop the process here.
//  3. Find a free port, starting at the configured one.
//  4. Serve until SIGINT or SIGTERM, then shut down gracefully.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/firasghr/HeyteaDIY/apperr"
	"github.com/firasghr/HeyteaDIY/config"
	"github.com/firasghr/HeyteaDIY/editor"
	"github.com/firasghr/HeyteaDIY/imaging"
	"github.com/firasghr/HeyteaDIY/logger"
	"github.com/firasghr/HeyteaDIY/metrics"
	"github.com/firasghr/HeyteaDIY/portprobe"
	"github.com/firasghr/HeyteaDIY/relay"
	"github.com/firasghr/HeyteaDIY/signer"
	"github.com/firasghr/HeyteaDIY/token"
	"github.com/firasghr/HeyteaDIY/upstream"
	"github.com/firasghr/HeyteaDIY/worker"
)

func main() {
	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	case "serve":
		err = runServe(ctx, args)
	case "edit":
		err = runEdit(ctx, args)
	case "sms-send":
		err = runSMSSend(ctx, args)
	case "sms-login":
		err = runSMSLogin(ctx, args)
	case "upload":
		err = runUpload(ctx, args)
	default:
		err = fmt.Errorf("unknown command %q (want serve, edit, sms-send, sms-login or upload)", cmd)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "heytea-diy %s: %v\n", cmd, err)
		stop()
		os.Exit(1)
	}
}

// commonFlags registers -config and -env on fs.
func commonFlags(fs *flag.FlagSet) (configFile, envFile *string) {
	configFile = fs.String("config", "", "Path to JSON config file (optional; uses defaults if omitted)")
	envFile = fs.String("env", ".env", "Path to a .env file with HEYTEA_* overrides (ignored if missing)")
	return configFile, envFile
}

func loadConfig(configFile, envFile string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		var err error
		if cfg, err = config.LoadConfig(configFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(envFile); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ── serve ──────────────────────────────────────────────────────────────────

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configFile, envFile := commonFlags(fs)
	fs.Parse(args) //nolint:errcheck

	cfg, err := loadConfig(*configFile, *envFile)
	if err != nil {
		return err
	}
	log := logger.New(logger.ParseLevel(cfg.LogLevel))
	log.Info("HeyTea relay starting up")
	if *configFile != "" {
		log.Infof("configuration loaded from %q", *configFile)
	}

	up, err := upstream.FromConfig(cfg)
	if err != nil {
		return err
	}

	port, err := portprobe.FindAvailable(cfg.Port, cfg.Port+cfg.PortScanRange)
	if err != nil {
		return err
	}
	if port != cfg.Port {
		log.Infof("port %d is in use; using %d", cfg.Port, port)
	}

	m := metrics.NewMetrics()
	srv := relay.New(cfg, up, log, m, nil)

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s := m.Snapshot()
				log.Debugf("metrics: total: %d | success: %d | failed: %d | rejected: %d",
					s.Total, s.Success, s.Failed, s.Rejected)
			}
		}
	}()

	log.Infof("HeyTea proxy running at %s (upstream %s)", cfg.AdvertisedBaseURL(port), cfg.UpstreamBaseURL)
	if err := srv.ListenAndServe(ctx, fmt.Sprintf(":%d", port)); err != nil {
		return err
	}

	s := m.Snapshot()
	log.Infof("final metrics: total: %d | success: %d | failed: %d | rejected: %d | rps: %.2f",
		s.Total, s.Success, s.Failed, s.Rejected, s.RPS)
	log.Info("HeyTea relay shut down cleanly")
	return nil
}

// ── edit ───────────────────────────────────────────────────────────────────

func runEdit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("edit", flag.ExitOnError)
	configFile, envFile := commonFlags(fs)
	in := fs.String("in", "", "Comma-separated PNG files to edit (extra arguments are added too)")
	filters := fs.String("filters", "", "Comma-separated filters to apply in order: "+strings.Join(imaging.Names(), ", "))
	removeBG := fs.Bool("remove-bg", false, "Remove the background before applying filters")
	cropSpec := fs.String("crop", "", "Crop box x0,y0,x1,y1 in source pixels (default: largest centered box)")
	segURL := fs.String("segmenter", "", "Background-removal service URL (default from config)")
	outDir := fs.String("out", "out", "Output directory")
	workers := fs.Int("workers", 4, "Number of files edited concurrently")
	fs.Parse(args) //nolint:errcheck

	cfg, err := loadConfig(*configFile, *envFile)
	if err != nil {
		return err
	}
	log := logger.New(logger.ParseLevel(cfg.LogLevel))

	files := append(splitList(*in), fs.Args()...)
	if len(files) == 0 {
		return errors.New("no input files; pass -in a.png[,b.png]")
	}
	var crop *image.Rectangle
	if *cropSpec != "" {
		r, err := parseRect(*cropSpec)
		if err != nil {
			return err
		}
		crop = &r
	}
	steps := splitList(*filters)
	for _, f := range steps {
		if _, ok := imaging.Lookup(f); !ok {
			return fmt.Errorf("unknown filter %q (want one of %s)", f, strings.Join(imaging.Names(), ", "))
		}
	}

	var seg imaging.Segmenter
	if url := firstNonEmpty(*segURL, cfg.SegmenterURL); url != "" {
		seg = imaging.NewHTTPSegmenter(url)
	} else if *removeBG {
		return errors.New("-remove-bg needs -segmenter or segmenter_url in config")
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	errs := worker.Run(ctx, *workers, files, func(ctx context.Context, _ int, path string) error {
		return editFile(ctx, path, filepath.Join(*outDir, filepath.Base(path)), crop, steps, *removeBG, seg)
	})

	failed := 0
	for i, err := range errs {
		if err != nil {
			failed++
			log.Errorf("%s: %v", files[i], err)
			continue
		}
		log.Infof("%s -> %s", files[i], filepath.Join(*outDir, filepath.Base(files[i])))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

func editFile(ctx context.Context, in, out string, crop *image.Rectangle, steps []string, removeBG bool, seg imaging.Segmenter) error {
	f, err := os.Open(in)
	if err != nil {
		return err
	}
	defer f.Close()

	s := editor.New(seg)
	if err := s.Load(f); err != nil {
		return err
	}
	if crop != nil {
		if _, err := s.Crop(*crop); err != nil {
			return err
		}
	}
	if removeBG {
		if _, err := s.RemoveBackground(ctx); err != nil {
			return err
		}
	}
	for _, name := range steps {
		if _, err := s.Apply(name); err != nil {
			return err
		}
	}

	dst, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := s.WritePNG(dst); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// ── sms-send / sms-login ───────────────────────────────────────────────────

func relayFlag(fs *flag.FlagSet) *string {
	return fs.String("relay", "", "Relay base URL (default: the configured advertised address)")
}

func relayClient(cfg *config.Config, base string) *relay.Client {
	if base == "" {
		base = cfg.AdvertisedBaseURL(cfg.Port)
	}
	return relay.NewClient(base, nil)
}

func runSMSSend(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sms-send", flag.ExitOnError)
	configFile, envFile := commonFlags(fs)
	base := relayFlag(fs)
	mobile := fs.String("mobile", "", "Phone number")
	area := fs.String("area", "", "Area code (default from config)")
	ticket := fs.String("ticket", "", "Captcha ticket")
	randstr := fs.String("randstr", "", "Captcha randstr")
	fs.Parse(args) //nolint:errcheck

	cfg, err := loadConfig(*configFile, *envFile)
	if err != nil {
		return err
	}
	body, err := relayClient(cfg, *base).SendSMS(ctx, upstream.SendSMSInput{
		Mobile:         *mobile,
		AreaCode:       *area,
		CaptchaTicket:  *ticket,
		CaptchaRandStr: *randstr,
	})
	if err != nil {
		return err
	}
	printJSON(body)
	if res := upstream.ParseResult(body); !res.OK() {
		return apperr.Upstream(res.Text(), 0, body, nil)
	}
	fmt.Fprintf(os.Stderr, "verification code sent to %s\n", upstream.MaskMobile(*mobile))
	return nil
}

func runSMSLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sms-login", flag.ExitOnError)
	configFile, envFile := commonFlags(fs)
	base := relayFlag(fs)
	mobile := fs.String("mobile", "", "Phone number")
	code := fs.String("code", "", "SMS verification code")
	area := fs.String("area", "", "Area code (default from config)")
	save := fs.String("save", "", "Where to save credentials (default ~/.heytea-diy/credentials.json)")
	fs.Parse(args) //nolint:errcheck

	cfg, err := loadConfig(*configFile, *envFile)
	if err != nil {
		return err
	}
	res, err := relayClient(cfg, *base).Login(ctx, upstream.LoginInput{Mobile: *mobile, Code: *code, AreaCode: *area})
	if err != nil {
		return err
	}
	if res.Token == "" || res.UserMainID == "" {
		printJSON(res.Raw)
		return errors.New("login response carried no token or user id")
	}

	path := *save
	if path == "" {
		if path, err = token.DefaultCredentialsPath(); err != nil {
			return err
		}
	}
	if err := (token.Credentials{Token: res.Token, UserMainID: res.UserMainID}).Save(path); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "logged in as %s; credentials saved to %s\n", upstream.MaskMobile(*mobile), path)
	return nil
}

// ── upload ─────────────────────────────────────────────────────────────────

func runUpload(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	configFile, envFile := commonFlags(fs)
	base := relayFlag(fs)
	in := fs.String("in", "", "PNG design to upload")
	tok := fs.String("token", "", "Session token (default: saved credentials)")
	user := fs.String("user", "", "user_main_id (default: saved credentials)")
	creds := fs.String("credentials", "", "Credentials file (default ~/.heytea-diy/credentials.json)")
	fs.Parse(args) //nolint:errcheck

	cfg, err := loadConfig(*configFile, *envFile)
	if err != nil {
		return err
	}
	if *in == "" {
		return errors.New("no design; pass -in design.png")
	}

	if *tok == "" || *user == "" {
		path := *creds
		if path == "" {
			if path, err = token.DefaultCredentialsPath(); err != nil {
				return err
			}
		}
		saved, err := token.LoadCredentials(path)
		if err != nil {
			return err
		}
		*tok = firstNonEmpty(*tok, saved.Token)
		*user = firstNonEmpty(*user, saved.UserMainID)
	}
	if st := token.Inspect(*tok, time.Now()); st.Expired {
		fmt.Fprintf(os.Stderr, "warning: token expired at %s; the upload will likely be rejected\n",
			st.ExpiresAt.Format(time.RFC3339))
	}

	// Re-encode through the editor so the upload is always canvas-sized.
	f, err := os.Open(*in)
	if err != nil {
		return err
	}
	s := editor.New(nil)
	err = s.Load(f)
	f.Close()
	if err != nil {
		return err
	}
	var png bytes.Buffer
	if err := s.WritePNG(&png); err != nil {
		return err
	}

	sig, err := signer.BuildUploadSignature(cfg.SignSalt, *user, time.Now().UnixMilli())
	if err != nil {
		return err
	}
	body, err := relayClient(cfg, *base).Upload(ctx, png.Bytes(), sig.Sign, sig.Timestamp, *tok)
	if err != nil {
		return err
	}
	printJSON(body)
	if res := upstream.ParseResult(body); !res.OK() {
		return apperr.Upstream(res.Text(), 0, body, nil)
	}
	return nil
}

// ── helpers ────────────────────────────────────────────────────────────────

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseRect reads "x0,y0,x1,y1".
func parseRect(s string) (image.Rectangle, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return image.Rectangle{}, fmt.Errorf("crop %q: want x0,y0,x1,y1", s)
	}
	var n [4]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return image.Rectangle{}, fmt.Errorf("crop %q: %w", s, err)
		}
		n[i] = v
	}
	r := image.Rect(n[0], n[1], n[2], n[3])
	if r.Empty() {
		return image.Rectangle{}, fmt.Errorf("crop %q is empty", s)
	}
	return r, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func printJSON(raw json.RawMessage) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
		return
	}
	fmt.Println(buf.String())
}
