package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"graphstore/storage"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// replConfig holds the REPL tunables, loadable from a YAML file and
// overridable by flags.
type replConfig struct {
	LogLevel    string        `yaml:"log_level"`
	LockTimeout time.Duration `yaml:"lock_timeout"`
	GCInterval  time.Duration `yaml:"gc_interval"`
}

func defaultConfig() replConfig {
	return replConfig{
		LogLevel:    "info",
		LockTimeout: 0,
		GCInterval:  time.Second,
	}
}

func loadConfig(path string) (replConfig, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// replState holds the state of the REPL. Every input line runs in its own
// transaction, committed on success and aborted on error.
type replState struct {
	store     *storage.Storage
	logger    *logrus.Logger
	queryNum  int
	isRunning bool
}

func newReplState(cfg replConfig) (*replState, error) {
	logger := logrus.StandardLogger()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.LogLevel, err)
	}
	logger.SetLevel(level)

	return &replState{
		store: storage.NewStorage(
			storage.WithLockTimeout(cfg.LockTimeout),
			storage.WithGCInterval(cfg.GCInterval),
		),
		logger:    logger,
		isRunning: true,
	}, nil
}

// parseValue reads a property value literal: null, true, false, a number, or
// a double-quoted string.
func parseValue(token string) (storage.PropertyValue, error) {
	switch token {
	case "null":
		return storage.NullValue(), nil
	case "true":
		return storage.BoolValue(true), nil
	case "false":
		return storage.BoolValue(false), nil
	}
	if strings.HasPrefix(token, "\"") {
		s, err := strconv.Unquote(token)
		if err != nil {
			return storage.NullValue(), fmt.Errorf("bad string literal %s: %v", token, err)
		}
		return storage.StringValue(s), nil
	}
	if i, err := strconv.ParseInt(token, 10, 64); err == nil {
		return storage.IntValue(i), nil
	}
	if d, err := strconv.ParseFloat(token, 64); err == nil {
		return storage.DoubleValue(d)
	}
	return storage.NullValue(), fmt.Errorf("bad value literal %s", token)
}

func parseGid(token string) (storage.Gid, error) {
	id, err := strconv.ParseUint(token, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad id %s", token)
	}
	return storage.Gid(id), nil
}

func (rs *replState) printVertex(va *storage.VertexAccessor) error {
	labels, err := va.Labels(storage.ViewNew)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		name, err := rs.store.Names().LabelToName(l)
		if err != nil {
			return err
		}
		names = append(names, name)
	}
	props, err := va.Properties(storage.ViewNew)
	if err != nil {
		return err
	}
	parts := make([]string, 0, len(props))
	for p, v := range props {
		name, err := rs.store.Names().PropertyToName(p)
		if err != nil {
			return err
		}
		parts = append(parts, fmt.Sprintf("%s: %s", name, v))
	}
	fmt.Printf("  ID: %d, Labels: [%s], Properties: {%s}\n",
		va.Gid(), strings.Join(names, ", "), strings.Join(parts, ", "))
	return nil
}

func (rs *replState) printEdge(ea *storage.EdgeAccessor) error {
	typeName, err := rs.store.Names().EdgeTypeToName(ea.EdgeType())
	if err != nil {
		return err
	}
	props, err := ea.Properties(storage.ViewNew)
	if err != nil {
		return err
	}
	parts := make([]string, 0, len(props))
	for p, v := range props {
		name, err := rs.store.Names().PropertyToName(p)
		if err != nil {
			return err
		}
		parts = append(parts, fmt.Sprintf("%s: %s", name, v))
	}
	fmt.Printf("  ID: %d, %d-[%s]->%d, Properties: {%s}\n",
		ea.Gid(), ea.From().Gid(), typeName, ea.To().Gid(), strings.Join(parts, ", "))
	return nil
}

// runCommand executes one parsed command inside the given transaction.
func (rs *replState) runCommand(acc *storage.Accessor, fields []string) error {
	names := rs.store.Names()
	cmd := strings.ToUpper(fields[0])

	switch cmd {
	case "CREATE":
		if len(fields) < 2 {
			return fmt.Errorf("usage: CREATE VERTEX|EDGE|INDEX ...")
		}
		switch strings.ToUpper(fields[1]) {
		case "VERTEX":
			va, err := acc.CreateVertex()
			if err != nil {
				return err
			}
			for _, label := range fields[2:] {
				if _, err := va.AddLabel(names.NameToLabel(label)); err != nil {
					return err
				}
			}
			fmt.Printf("Created vertex %d\n", va.Gid())
			return nil
		case "EDGE":
			if len(fields) != 5 {
				return fmt.Errorf("usage: CREATE EDGE <from> <to> <type>")
			}
			from, err := parseGid(fields[2])
			if err != nil {
				return err
			}
			to, err := parseGid(fields[3])
			if err != nil {
				return err
			}
			fromVA, err := acc.FindVertex(from, storage.ViewNew)
			if err != nil {
				return err
			}
			toVA, err := acc.FindVertex(to, storage.ViewNew)
			if err != nil {
				return err
			}
			ea, err := acc.CreateEdge(fromVA, toVA, names.NameToEdgeType(fields[4]))
			if err != nil {
				return err
			}
			fmt.Printf("Created edge %d\n", ea.Gid())
			return nil
		case "INDEX":
			if len(fields) != 4 {
				return fmt.Errorf("usage: CREATE INDEX <label> <property>")
			}
			if err := rs.store.CreateIndex(names.NameToLabel(fields[2]), names.NameToProperty(fields[3])); err != nil {
				return err
			}
			fmt.Printf("Created index on %s(%s)\n", fields[2], fields[3])
			return nil
		}
		return fmt.Errorf("unknown CREATE target %s", fields[1])

	case "DELETE":
		if len(fields) != 3 {
			return fmt.Errorf("usage: DELETE VERTEX|EDGE <id>")
		}
		gid, err := parseGid(fields[2])
		if err != nil {
			return err
		}
		switch strings.ToUpper(fields[1]) {
		case "VERTEX":
			va, err := acc.FindVertex(gid, storage.ViewNew)
			if err != nil {
				return err
			}
			if err := acc.DeleteVertex(va); err != nil {
				return err
			}
			fmt.Printf("Deleted vertex %d\n", gid)
			return nil
		case "EDGE":
			ea, err := acc.FindEdge(gid, storage.ViewNew)
			if err != nil {
				return err
			}
			if err := acc.DeleteEdge(ea); err != nil {
				return err
			}
			fmt.Printf("Deleted edge %d\n", gid)
			return nil
		}
		return fmt.Errorf("unknown DELETE target %s", fields[1])

	case "DETACH":
		if len(fields) != 4 || strings.ToUpper(fields[1]) != "DELETE" || strings.ToUpper(fields[2]) != "VERTEX" {
			return fmt.Errorf("usage: DETACH DELETE VERTEX <id>")
		}
		gid, err := parseGid(fields[3])
		if err != nil {
			return err
		}
		va, err := acc.FindVertex(gid, storage.ViewNew)
		if err != nil {
			return err
		}
		if err := acc.DetachDeleteVertex(va); err != nil {
			return err
		}
		fmt.Printf("Detach deleted vertex %d\n", gid)
		return nil

	case "ADD":
		if len(fields) != 4 || strings.ToUpper(fields[1]) != "LABEL" {
			return fmt.Errorf("usage: ADD LABEL <id> <label>")
		}
		gid, err := parseGid(fields[2])
		if err != nil {
			return err
		}
		va, err := acc.FindVertex(gid, storage.ViewNew)
		if err != nil {
			return err
		}
		added, err := va.AddLabel(names.NameToLabel(fields[3]))
		if err != nil {
			return err
		}
		if added {
			fmt.Printf("Added label %s to vertex %d\n", fields[3], gid)
		} else {
			fmt.Printf("Vertex %d already has label %s\n", gid, fields[3])
		}
		return nil

	case "REMOVE":
		if len(fields) != 4 || strings.ToUpper(fields[1]) != "LABEL" {
			return fmt.Errorf("usage: REMOVE LABEL <id> <label>")
		}
		gid, err := parseGid(fields[2])
		if err != nil {
			return err
		}
		va, err := acc.FindVertex(gid, storage.ViewNew)
		if err != nil {
			return err
		}
		removed, err := va.RemoveLabel(names.NameToLabel(fields[3]))
		if err != nil {
			return err
		}
		if removed {
			fmt.Printf("Removed label %s from vertex %d\n", fields[3], gid)
		} else {
			fmt.Printf("Vertex %d does not have label %s\n", gid, fields[3])
		}
		return nil

	case "SET":
		if len(fields) != 5 || strings.ToUpper(fields[1]) != "PROPERTY" {
			return fmt.Errorf("usage: SET PROPERTY <id> <name> <value>")
		}
		gid, err := parseGid(fields[2])
		if err != nil {
			return err
		}
		value, err := parseValue(fields[4])
		if err != nil {
			return err
		}
		va, err := acc.FindVertex(gid, storage.ViewNew)
		if err != nil {
			return err
		}
		old, err := va.SetProperty(names.NameToProperty(fields[3]), value)
		if err != nil {
			return err
		}
		fmt.Printf("Set %s on vertex %d (was %s)\n", fields[3], gid, old)
		return nil

	case "SHOW":
		if len(fields) < 2 {
			return fmt.Errorf("usage: SHOW VERTICES|VERTEX|EDGES|INDEXES")
		}
		switch strings.ToUpper(fields[1]) {
		case "VERTICES":
			vas, err := acc.Vertices(storage.ViewNew)
			if err != nil {
				return err
			}
			if len(vas) == 0 {
				fmt.Println("No vertices found")
				return nil
			}
			fmt.Println("Vertices:")
			for _, va := range vas {
				if err := rs.printVertex(va); err != nil {
					return err
				}
			}
			return nil
		case "VERTEX":
			if len(fields) != 3 {
				return fmt.Errorf("usage: SHOW VERTEX <id>")
			}
			gid, err := parseGid(fields[2])
			if err != nil {
				return err
			}
			va, err := acc.FindVertex(gid, storage.ViewNew)
			if err != nil {
				return err
			}
			return rs.printVertex(va)
		case "EDGES":
			eas, err := acc.Edges(storage.ViewNew)
			if err != nil {
				return err
			}
			if len(eas) == 0 {
				fmt.Println("No edges found")
				return nil
			}
			fmt.Println("Edges:")
			for _, ea := range eas {
				if err := rs.printEdge(ea); err != nil {
					return err
				}
			}
			return nil
		case "INDEXES":
			keys := rs.store.ListAllIndices()
			if len(keys) == 0 {
				fmt.Println("No indexes found")
				return nil
			}
			fmt.Println("Indexes:")
			for _, key := range keys {
				label, err := names.LabelToName(key.Label)
				if err != nil {
					return err
				}
				prop, err := names.PropertyToName(key.Property)
				if err != nil {
					return err
				}
				fmt.Printf("  %s(%s)\n", label, prop)
			}
			return nil
		}
		return fmt.Errorf("unknown SHOW target %s", fields[1])

	case "DROP":
		if len(fields) != 4 || strings.ToUpper(fields[1]) != "INDEX" {
			return fmt.Errorf("usage: DROP INDEX <label> <property>")
		}
		if err := rs.store.DropIndex(names.NameToLabel(fields[2]), names.NameToProperty(fields[3])); err != nil {
			return err
		}
		fmt.Printf("Dropped index on %s(%s)\n", fields[2], fields[3])
		return nil

	case "SCAN":
		return rs.runScan(acc, fields)

	case "GC":
		rs.store.CollectGarbage()
		fmt.Println("Garbage collection cycle done")
		return nil
	}

	return fmt.Errorf("unknown command %s; type '.help' for assistance", fields[0])
}

// runScan handles SCAN <label>, SCAN <label> <prop> = <value>, and
// SCAN <label> <prop> <low> <high> (inclusive bounds, '-' for open).
func (rs *replState) runScan(acc *storage.Accessor, fields []string) error {
	names := rs.store.Names()

	var vas []*storage.VertexAccessor
	var err error
	switch {
	case len(fields) == 2:
		vas, err = acc.ScanLabel(names.NameToLabel(fields[1]), storage.ViewNew)
	case len(fields) == 5 && fields[3] == "=":
		var value storage.PropertyValue
		value, err = parseValue(fields[4])
		if err != nil {
			return err
		}
		vas, err = acc.ScanLabelPropertyEqual(
			names.NameToLabel(fields[1]), names.NameToProperty(fields[2]), value, storage.ViewNew)
	case len(fields) == 5:
		var lower, upper *storage.Bound
		if fields[3] != "-" {
			value, err := parseValue(fields[3])
			if err != nil {
				return err
			}
			lower = storage.InclusiveBound(value)
		}
		if fields[4] != "-" {
			value, err := parseValue(fields[4])
			if err != nil {
				return err
			}
			upper = storage.InclusiveBound(value)
		}
		vas, err = acc.ScanLabelPropertyRange(
			names.NameToLabel(fields[1]), names.NameToProperty(fields[2]), lower, upper, storage.ViewNew)
	default:
		return fmt.Errorf("usage: SCAN <label> [<property> = <value> | <property> <low> <high>]")
	}
	if err != nil {
		return err
	}

	if len(vas) == 0 {
		fmt.Println("No vertices found")
		return nil
	}
	fmt.Println("Vertices:")
	for _, va := range vas {
		if err := rs.printVertex(va); err != nil {
			return err
		}
	}
	return nil
}

// processCommand runs one input line in its own transaction.
func (rs *replState) processCommand(input string) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}

	if strings.HasPrefix(input, ".") {
		switch strings.ToLower(input) {
		case ".help":
			rs.printHelp()
			return nil
		case ".exit":
			rs.isRunning = false
			return nil
		default:
			return fmt.Errorf("unknown command: %s; type '.help' for assistance", input)
		}
	}
	if strings.EqualFold(input, "quit") {
		rs.isRunning = false
		return nil
	}

	rs.queryNum++
	log := rs.logger.WithFields(logrus.Fields{
		"component": "Main",
		"input":     input,
		"query_num": rs.queryNum,
	})
	log.Debug("Executing command")

	acc := rs.store.Access()
	if err := rs.runCommand(acc, strings.Fields(input)); err != nil {
		log.WithError(err).Error("Command failed")
		if abortErr := acc.Abort(); abortErr != nil {
			log.WithError(abortErr).Error("Abort failed")
		}
		return err
	}
	return acc.Commit()
}

func (rs *replState) printHelp() {
	fmt.Println("GraphStore REPL Commands:")
	fmt.Println("  .help                              Show this help message")
	fmt.Println("  .exit                              Exit the REPL")
	fmt.Println("  CREATE VERTEX [label ...]          Create a vertex")
	fmt.Println("  CREATE EDGE <from> <to> <type>     Create an edge")
	fmt.Println("  CREATE INDEX <label> <property>    Create a label+property index")
	fmt.Println("  DROP INDEX <label> <property>      Drop a label+property index")
	fmt.Println("  ADD LABEL <id> <label>             Add a label to a vertex")
	fmt.Println("  REMOVE LABEL <id> <label>          Remove a label from a vertex")
	fmt.Println("  SET PROPERTY <id> <name> <value>   Set a vertex property")
	fmt.Println("  DELETE VERTEX <id>                 Delete a vertex without edges")
	fmt.Println("  DETACH DELETE VERTEX <id>          Delete a vertex and its edges")
	fmt.Println("  DELETE EDGE <id>                   Delete an edge")
	fmt.Println("  SHOW VERTICES | VERTEX <id>        List vertices / one vertex")
	fmt.Println("  SHOW EDGES | INDEXES               List edges / indexes")
	fmt.Println("  SCAN <label>                       Scan by label")
	fmt.Println("  SCAN <label> <prop> = <value>      Scan by property value")
	fmt.Println("  SCAN <label> <prop> <low> <high>   Scan by property range ('-' = open)")
	fmt.Println("  GC                                 Run a garbage collection cycle")
	fmt.Println("Values: null, true, false, 42, 3.14, \"text\"")
	fmt.Println("Type '.exit' or 'quit' to exit.")
}

// runREPL runs the interactive loop.
func (rs *replState) runREPL() {
	rs.logger.WithField("component", "Main").Info("Starting GraphStore REPL")
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("Welcome to GraphStore REPL. Type '.help' for commands or 'quit' to exit.")

	for rs.isRunning {
		fmt.Print("graphstore> ")
		if !scanner.Scan() {
			break
		}
		if err := rs.processCommand(scanner.Text()); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}

	rs.store.Close()
	fmt.Println("Goodbye!")
}

func main() {
	var configPath string
	var logLevel string
	var lockTimeout time.Duration
	var gcInterval time.Duration

	root := &cobra.Command{
		Use:   "graphstore-repl",
		Short: "Interactive shell for the in-memory transactional graph store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if cmd.Flags().Changed("lock-timeout") {
				cfg.LockTimeout = lockTimeout
			}
			if cmd.Flags().Changed("gc-interval") {
				cfg.GCInterval = gcInterval
			}

			rs, err := newReplState(cfg)
			if err != nil {
				return err
			}
			rs.runREPL()
			return nil
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "path to YAML config file")
	root.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.Flags().DurationVar(&lockTimeout, "lock-timeout", 0, "record lock acquisition timeout")
	root.Flags().DurationVar(&gcInterval, "gc-interval", time.Second, "garbage collection period")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
