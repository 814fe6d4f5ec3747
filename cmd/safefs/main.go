// Command safefs mounts a backing directory as a FUSE filesystem that
// transparently encrypts every file's contents with a pin-derived stream
// cipher.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	"github.com/google/uuid"
	flag "github.com/spf13/pflag"

	"github.com/atavus-go/safefs/internal/fusefs"
	"github.com/atavus-go/safefs/internal/keyschedule"
	"github.com/atavus-go/safefs/internal/pin"
	"github.com/atavus-go/safefs/internal/rotor"
	"github.com/atavus-go/safefs/internal/safelog"
	"github.com/atavus-go/safefs/internal/stream"
	"github.com/atavus-go/safefs/internal/vault"
)

var (
	storage    = flag.StringP("storage", "s", "", "backing directory holding the encrypted files")
	mountpoint = flag.StringP("mount", "m", "", "directory to mount the decrypted view on")
	logPath    = flag.StringP("log", "l", "safefs.log", "path to the operation log")
	options    = flag.StringP("options", "o", "", "extra comma-separated FUSE mount options")

	rounds3 = flag.Bool("3", false, "use 3 cipher rounds")
	rounds5 = flag.Bool("5", false, "use 5 cipher rounds (default)")
	rounds8 = flag.Bool("8", false, "use 8 cipher rounds")

	traceOn   = flag.Bool("trace", false, "log as -debug plus hex/ASCII dumps of read/write data")
	debugOn   = flag.Bool("debug", false, "log as -info plus getattr results and handle reuse")
	infoOn    = flag.Bool("info", false, "log the mount and each successful open and create")
	dumpASCII = flag.Bool("dump-ascii", false, "render dumped bytes as ASCII where printable")
)

func main() {
	// pflag reads a single dash as a run of one-letter shorthands, so the
	// single-dash long flags are rewritten to their double-dash form first.
	for i, arg := range os.Args[1:] {
		switch arg {
		case "-trace", "-debug", "-info", "-dump-ascii", "-3", "-5", "-8":
			os.Args[i+1] = "-" + arg
		}
	}
	flag.Parse()

	if os.Getuid() == 0 || os.Geteuid() == 0 {
		fmt.Fprintln(os.Stderr, "Cannot run as root")
		os.Exit(1)
	}

	if *storage == "" || *mountpoint == "" {
		fmt.Fprintln(os.Stderr, "Syntax: safefs [-trace|-debug|-info] [-dump-ascii] [-3|-5|-8] [-o<options>] [-l<log-file-path>] -s<storage> -m<mount-point>")
		os.Exit(1)
	}

	rounds := stream.Rounds5
	switch {
	case *rounds3:
		rounds = stream.Rounds3
	case *rounds8:
		rounds = stream.Rounds8
	}

	logFile, err := os.Create(*logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot open log file [%s] for writing: %v\n", *logPath, err)
		os.Exit(1)
	}
	defer logFile.Close()

	level := safelog.LevelError
	switch {
	case *traceOn:
		level = safelog.LevelTrace
	case *debugOn:
		level = safelog.LevelDebug
	case *infoOn:
		level = safelog.LevelInfo
	}
	log := safelog.New(logFile, level, *dumpASCII)

	root, err := filepath.Abs(*storage)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot resolve storage path: %v\n", err)
		os.Exit(1)
	}
	root, err = filepath.EvalSymlinks(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot resolve storage path: %v\n", err)
		os.Exit(1)
	}

	pwd, err := pin.Read()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot read pin code: %v\n", err)
		os.Exit(1)
	}
	if len(pwd) != keyschedule.PinLength {
		fmt.Fprintln(os.Stderr, "Invalid pin code length")
		os.Exit(1)
	}

	sched, err := keyschedule.Derive(pwd)
	pin.Zero(pwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot derive key schedule: %v\n", err)
		os.Exit(1)
	}
	defer sched.Zero()

	seed := time.Now().UnixNano()
	seedingRand := rand.New(rand.NewSource(seed))

	if err := vault.EnsureSentinel(root, sched, rounds, seedingRand); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if !selfTestCipher(seedingRand, rounds) {
		fmt.Fprintln(os.Stderr, "encipher/decipher algorithm broken")
		os.Exit(1)
	}

	v := vault.New(root, sched, rounds, seed, log)
	defer v.Close()

	sessionID := uuid.New().String()
	log.Infof("main", "mounting session=%s storage=%s mount=%s rounds=%d", sessionID, root, *mountpoint, rounds)

	mountOpts := buildMountOptions(*options)
	conn, err := fuse.Mount(*mountpoint, mountOpts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Mounting filesystem [%s] failed: %v\n", *mountpoint, err)
		os.Exit(1)
	}
	defer conn.Close()

	fmt.Fprintf(os.Stderr, "Mounting filesystem [%s] using storage [%s]\n", *mountpoint, root)

	filesystem := &fusefs.FS{Vault: v}
	if err := fs.Serve(conn, filesystem); err != nil {
		fmt.Fprintf(os.Stderr, "Serving filesystem failed: %v\n", err)
		os.Exit(1)
	}

	<-conn.Ready
	if err := conn.MountError; err != nil {
		fmt.Fprintf(os.Stderr, "Mount error: %v\n", err)
		os.Exit(1)
	}
}

// buildMountOptions always sets the filesystem name, subtype and volume
// name, and maps the -o entries allow_other and ro to their typed
// bazil.org/fuse options; every other -o entry is ignored. No hard_remove,
// use_ino or exec option is set; direct I/O is requested per file by
// Node.Open instead of at mount time.
func buildMountOptions(raw string) []fuse.MountOption {
	opts := []fuse.MountOption{
		fuse.FSName("safefs"),
		fuse.Subtype("safefs"),
		fuse.VolumeName("safe"),
	}
	extra := strings.Split(raw, ",")
	for _, o := range extra {
		switch strings.TrimSpace(o) {
		case "allow_other":
			opts = append(opts, fuse.AllowOther())
		case "ro":
			opts = append(opts, fuse.ReadOnly())
		}
	}
	return opts
}

// selfTestCipher round-trips a full 65536-byte buffer through a freshly
// generated rotor before the mount is served, matching the startup check
// the original performs on every launch.
func selfTestCipher(rng *rand.Rand, rounds int) bool {
	r := rotor.Generate(rng)
	orig := make([]byte, 65536)
	for i := range orig {
		orig[i] = byte(i)
	}
	buf := append([]byte(nil), orig...)
	var offsets stream.Offsets

	stream.Encipher(&r.Forward, offsets, 0, buf, rounds)
	if bytesEqual(orig, buf) {
		return false
	}
	stream.Decipher(&r.Reverse, offsets, 0, buf, rounds)
	return bytesEqual(orig, buf)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
