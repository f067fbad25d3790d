package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hailam/magicgen/internal/board"
	"github.com/hailam/magicgen/internal/magic"
	"github.com/hailam/magicgen/internal/render"
	"github.com/hailam/magicgen/internal/storage"
	"github.com/hailam/magicgen/internal/tablefile"
)

var (
	cpuprofile  = flag.String("cpuprofile", "", "write cpu profile to file")
	piece       = flag.String("piece", "both", "slider to generate: rook, bishop or both")
	outDir      = flag.String("out", "", "output directory (default: platform data dir)")
	format      = flag.String("format", "bin", "output format: bin, text or both")
	compress    = flag.Bool("compress", true, "zstd-compress binary tables")
	seed        = flag.Uint64("seed", 0, "random seed (0 = time based)")
	workers     = flag.Int("workers", 0, "parallel square searches (0 = GOMAXPROCS)")
	maxAttempts = flag.Uint64("max-attempts", 0, "per-square candidate limit (0 = unlimited)")
	timeout     = flag.Duration("timeout", 0, "overall generation deadline (0 = none)")
	useCache    = flag.Bool("cache", false, "reuse and store magics in the local database")
	dbDir       = flag.String("db", "", "database directory (implies -cache)")
	renderSq    = flag.String("render", "", "write mask and attack diagrams for a square (e.g. e4)")
	verifyPath  = flag.String("verify", "", "verify a binary table file and exit")
	showSq      = flag.String("show", "", "print the mask and one occupancy subset for a square and exit")
	showIndex   = flag.Int("index", 0, "occupancy index used by -show")
	stats       = flag.Bool("stats", false, "print cached run statistics and exit")
)

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	// Start CPU profiling if requested (via flag or environment variable)
	profilePath := *cpuprofile
	if profilePath == "" {
		profilePath = os.Getenv("CPUPROFILE")
	}
	if profilePath != "" {
		f, err := os.Create(profilePath)
		if err != nil {
			log.Print("could not create CPU profile: ", err)
			return 1
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Print("could not start CPU profile: ", err)
			return 1
		}
		defer pprof.StopCPUProfile()
		log.Printf("CPU profiling enabled, writing to %s", profilePath)
	}

	sliders, err := parseSliders(*piece)
	if err != nil {
		log.Print(err)
		return 2
	}
	switch *format {
	case "bin", "text", "both":
	default:
		log.Printf("invalid format: %q", *format)
		return 2
	}

	if *verifyPath != "" {
		return verifyFile(*verifyPath)
	}
	if *showSq != "" {
		return show(sliders, *showSq, *showIndex)
	}
	if *stats {
		return showStats()
	}

	dir := *outDir
	if dir == "" {
		if dir, err = storage.GetTablesDir(); err != nil {
			log.Printf("could not resolve output directory: %v", err)
			return 1
		}
	}

	var store *storage.Storage
	if *useCache || *dbDir != "" {
		if store, err = openStore(); err != nil {
			log.Printf("Warning: magic cache unavailable: %v", err)
		} else {
			defer store.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	runSeed := *seed
	if runSeed == 0 {
		runSeed = uint64(time.Now().UnixNano())
	}
	log.Printf("seed %d, output %s", runSeed, dir)

	status := 0
	for _, s := range sliders {
		if err := generate(ctx, s, runSeed, dir, store); err != nil {
			log.Printf("%v: %v", s, err)
			status = 1
			if ctx.Err() != nil {
				break
			}
		}
	}

	if *renderSq != "" {
		if err := renderDiagrams(sliders, *renderSq, dir); err != nil {
			log.Printf("render: %v", err)
			status = 1
		}
	}
	return status
}

func generate(ctx context.Context, s board.Slider, runSeed uint64, dir string, store *storage.Storage) error {
	opts := magic.GenerateOptions{
		Seed:    runSeed,
		Workers: *workers,
		Search:  magic.SearchOptions{MaxAttempts: *maxAttempts},
	}
	if store != nil {
		known, err := store.LoadMagics(s)
		if err != nil {
			log.Printf("Warning: could not load cached %v magics: %v", s, err)
		} else {
			opts.Known = known
		}
	}

	var searched, reused atomic.Int32
	opts.Progress = func(e *magic.Entry, wasReused bool, elapsed time.Duration) {
		if wasReused {
			reused.Add(1)
			logCached(store, s, e)
			return
		}
		n := searched.Add(1)
		log.Printf("%v %v: magic %#016x, %d bits, %s candidates in %v (%d searched)",
			s, e.Square, e.Magic, e.Bits, humanize.Comma(int64(e.Attempts)), elapsed.Round(time.Microsecond), n)
	}

	start := time.Now()
	set, err := magic.Generate(ctx, s, opts)
	if err != nil {
		if errors.Is(err, magic.ErrSearchExhausted) {
			return fmt.Errorf("no magic within %d candidates: %w", *maxAttempts, err)
		}
		return err
	}
	elapsed := time.Since(start)
	log.Printf("%v: 64 squares in %v (%d searched, %d cached), %s candidates",
		s, elapsed.Round(time.Millisecond), searched.Load(), reused.Load(), humanize.Comma(int64(set.TotalAttempts())))

	// Output failures are reported but do not stop the remaining outputs.
	var writeErr error
	if *format == "bin" || *format == "both" {
		path := filepath.Join(dir, tablefile.FileName(s, "bin"))
		n, err := tablefile.WriteFile(path, set, tablefile.Options{Compress: *compress})
		if err != nil {
			log.Printf("failed to write %s: %v", path, err)
			writeErr = err
		} else {
			log.Printf("wrote %s (%s)", path, humanize.Bytes(uint64(n)))
		}
	}
	if *format == "text" || *format == "both" {
		path := filepath.Join(dir, tablefile.FileName(s, "txt"))
		n, err := tablefile.WriteTextFile(path, set)
		if err != nil {
			log.Printf("failed to write %s: %v", path, err)
			writeErr = err
		} else {
			log.Printf("wrote %s (%s)", path, humanize.Bytes(uint64(n)))
		}
	}

	if store != nil {
		if err := store.SaveSet(set); err != nil {
			log.Printf("Warning: could not cache %v magics: %v", s, err)
		}
		err := store.RecordRun(storage.RunResult{
			Slider:   s,
			Searched: int(searched.Load()),
			Reused:   int(reused.Load()),
			Attempts: set.TotalAttempts(),
			Duration: elapsed,
		})
		if err != nil {
			log.Printf("Warning: could not record run: %v", err)
		}
	}
	return writeErr
}

func openStore() (*storage.Storage, error) {
	if *dbDir != "" {
		return storage.Open(*dbDir)
	}
	return storage.NewStorage()
}

// logCached reports where a reused magic came from.
func logCached(store *storage.Storage, s board.Slider, e *magic.Entry) {
	if store == nil {
		return
	}
	rec, ok, err := store.LoadRecord(s, e.Square)
	if err != nil || !ok {
		return
	}
	log.Printf("%v %v: cached magic %#016x, originally %s candidates (%s)",
		s, e.Square, rec.Magic, humanize.Comma(int64(rec.Attempts)), humanize.Time(rec.FoundAt))
}

func showStats() int {
	store, err := openStore()
	if err != nil {
		log.Printf("open database: %v", err)
		return 1
	}
	defer store.Close()

	st, err := store.LoadStats()
	if err != nil {
		log.Printf("load stats: %v", err)
		return 1
	}
	if st.Runs == 0 {
		log.Print("no runs recorded")
		return 0
	}
	log.Printf("%d runs (rook %d, bishop %d), last %s",
		st.Runs, st.RunsBySlider[board.Rook.String()], st.RunsBySlider[board.Bishop.String()], humanize.Time(st.LastRun))
	log.Printf("%d squares searched, %d reused", st.SquaresSearched, st.SquaresReused)
	log.Printf("%s candidates, %s per searched square, %v total",
		humanize.Comma(int64(st.TotalAttempts)), humanize.Commaf(math.Round(st.AttemptsPerSquare())), st.TotalTime.Round(time.Millisecond))
	return 0
}

func verifyFile(path string) int {
	set, err := tablefile.ReadFile(path)
	if err != nil {
		log.Printf("read %s: %v", path, err)
		return 1
	}
	if err := set.Verify(); err != nil {
		log.Printf("verify %s: %v", path, err)
		return 1
	}
	log.Printf("%s: %v tables OK", path, set.Slider)
	return 0
}

func show(sliders []board.Slider, sqArg string, index int) int {
	sq, err := parseSquare(sqArg)
	if err != nil {
		log.Print(err)
		return 2
	}
	for _, s := range sliders {
		mask := magic.RelevantMask(sq, s)
		n := 1 << magic.RelevantBits(sq, s)
		if index < 0 || index >= n {
			log.Printf("%v %v: index %d out of range [0, %d)", s, sq, index, n)
			return 2
		}
		occ := magic.Occupancy(index, mask)
		fmt.Printf("%v %v mask (%d bits): %v\n%v\n", s, sq, mask.PopCount(), mask.Squares(), mask)
		fmt.Printf("occupancy %d:\n%v\n", index, occ)
		fmt.Printf("attacks:\n%v\n", magic.SlidingAttacks(sq, s, occ))
	}
	return 0
}

func renderDiagrams(sliders []board.Slider, sqArg, dir string) error {
	sq, err := parseSquare(sqArg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	opts := render.DefaultOptions()

	for _, s := range sliders {
		diagrams := map[string]board.Bitboard{
			"mask":    magic.RelevantMask(sq, s),
			"attacks": magic.SlidingAttacks(sq, s, board.Empty),
		}
		for name, bb := range diagrams {
			base := filepath.Join(dir, fmt.Sprintf("%s_%s_%s", s, sq, name))

			var buf bytes.Buffer
			render.SVG(&buf, bb, sq, opts)
			if err := os.WriteFile(base+".svg", buf.Bytes(), 0644); err != nil {
				return err
			}

			buf.Reset()
			if err := render.PNG(&buf, bb, sq, opts); err != nil {
				return err
			}
			if err := os.WriteFile(base+".png", buf.Bytes(), 0644); err != nil {
				return err
			}
			log.Printf("rendered %s.{svg,png}", base)
		}
	}
	return nil
}

func parseSliders(arg string) ([]board.Slider, error) {
	if strings.EqualFold(arg, "both") {
		return board.Sliders[:], nil
	}
	s, err := board.ParseSlider(arg)
	if err != nil {
		return nil, err
	}
	return []board.Slider{s}, nil
}

// parseSquare accepts algebraic ("e4") or numeric ("28") squares.
func parseSquare(arg string) (board.Square, error) {
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 0 || n > 63 {
			return board.NoSquare, fmt.Errorf("invalid square: %s", arg)
		}
		return board.Square(n), nil
	}
	return board.ParseSquare(strings.ToLower(arg))
}
