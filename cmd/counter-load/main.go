package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	vh "github.com/tckz/vegetahelper"
	vegeta "github.com/tsenart/vegeta/v12/lib"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/idtoken"

	"github.com/tckz/visitor-counter/internal/config"
	"github.com/tckz/visitor-counter/internal/log"
)

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
)

var (
	optRate = &vh.RateFlag{
		Rate: &vegeta.Rate{
			Freq: 30,
			Per:  1 * time.Second,
		}}
	optDuration = flag.Duration("duration", 10*time.Second, "Duration of the test [0 = forever]")
	optOutput   = flag.String("output", "", "/path/to/results.bin or 'stdout'")
	optWorkers  = flag.Uint64("workers", vegeta.DefaultWorkers, "Number of workers")
	optLogLevel = flag.String("log-level", "info", "info|warn|error")
	optTarget   = flag.String("target", "", "URL of the visitor counter endpoint")
	optMethod   = flag.String("method", http.MethodGet, "HTTP method")
	optAudience = flag.String("audience", "", "Attach an ID token for this audience, e.g. for an IAM protected Cloud Run service")
	optTimeout  = flag.Duration("timeout", 10*time.Second, "Per request timeout")
)

func init() {
	config.LoadDotEnv()

	flag.Var(optRate, "rate", "Number of requests per time unit")
	flag.Parse()

	logger = log.Must(log.NewLogger(log.WithLogLevel(*optLogLevel))).Sugar().With(zap.String("app", myName))
}

type nopWriteCloser struct {
	io.Writer
}

func (c nopWriteCloser) Close() error {
	return nil
}

func openResultFile(out string) (io.WriteCloser, error) {
	switch out {
	case "stdout":
		return &nopWriteCloser{os.Stdout}, nil
	default:
		return os.Create(out)
	}
}

type visitorResponse struct {
	VisitorCount *int64 `json:"visitor_count"`
	Error        string `json:"error"`
}

func newHTTPClient(ctx context.Context, audience string) (*http.Client, error) {
	if audience == "" {
		return &http.Client{Timeout: *optTimeout}, nil
	}

	// The caller must be a service account, see GOOGLE_APPLICATION_CREDENTIALS.
	ts, err := idtoken.NewTokenSource(ctx, audience)
	if err != nil {
		return nil, fmt.Errorf("idtoken.NewTokenSource: %w", err)
	}
	return &http.Client{
		Timeout: *optTimeout,
		Transport: &oauth2.Transport{
			Source: oauth2.ReuseTokenSource(nil, ts),
			Base:   http.DefaultTransport,
		},
	}, nil
}

func hit(ctx context.Context, cl *http.Client) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, *optMethod, *optTarget, nil)
	if err != nil {
		return 0, fmt.Errorf("http.NewRequest: %w", err)
	}
	resp, err := cl.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var v visitorResponse
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return 0, fmt.Errorf("status=%d, Decode: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("status=%d, error=%s", resp.StatusCode, v.Error)
	}
	if v.VisitorCount == nil {
		return 0, fmt.Errorf("visitor_count missing")
	}
	return *v.VisitorCount, nil
}

func main() {
	logger.Infof("ver=%s, args=%s", version, os.Args)
	defer logger.Infof("done")

	if *optOutput == "" {
		logger.Fatalf("*** --output must be specified.")
	}
	if *optTarget == "" {
		logger.Fatalf("*** --target must be specified.")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cl, err := newHTTPClient(ctx, *optAudience)
	if err != nil {
		logger.Fatalf("*** newHTTPClient: %v", err)
	}

	var succeeded, maxSeen int64
	atk := vh.NewAttacker(func(ctx context.Context) (result *vh.HitResult, retErr error) {
		n, err := hit(ctx, cl)
		if err != nil {
			return nil, err
		}
		atomic.AddInt64(&succeeded, 1)
		for {
			cur := atomic.LoadInt64(&maxSeen)
			if n <= cur || atomic.CompareAndSwapInt64(&maxSeen, cur, n) {
				break
			}
		}
		return result, nil
	}, vh.WithWorkers(*optWorkers))
	res := atk.Attack(ctx, *optRate.Rate, *optDuration, "visitor-counter")

	out, err := openResultFile(*optOutput)
	if err != nil {
		logger.Fatal(err)
	}
	defer out.Close()
	enc := vegeta.NewEncoder(out)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT)

loop:
	for {
		select {
		case s := <-sig:
			logger.Infof("Received signal: %s", s)
			cancel()
			// keep loop until 'res' is closed.
		case r, ok := <-res:
			if !ok {
				break loop
			}
			if err := enc.Encode(r); err != nil {
				logger.Errorf("*** Encode: %v", err)
				break loop
			}
		}
	}

	// with lost updates the counter grows by less than the successful hits
	logger.Infof("succeeded=%s, highest visitor_count=%s", humanize.Comma(atomic.LoadInt64(&succeeded)), humanize.Comma(atomic.LoadInt64(&maxSeen)))

	cancel()
}
