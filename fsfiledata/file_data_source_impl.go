package fsfiledata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/flagsync/go-client-sdk/interfaces"
	"github.com/flagsync/go-client-sdk/subsystems"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"gopkg.in/ghodss/yaml.v1"
)

type fileDataSource struct {
	sink                  subsystems.DataSourceUpdateSink
	absFilePaths          []string
	duplicateKeysHandling DuplicateKeysHandling
	reloaderFactory       ReloaderFactory
	loggers               ldlog.Loggers
	isInitialized         atomic.Bool
	memberships           map[string]membershipData
	loaded                bool
	readyCh               chan<- struct{}
	readyOnce             sync.Once
	closeOnce             sync.Once
	closeReloaderCh       chan struct{}
	lock                  sync.Mutex
}

func newFileDataSourceImpl(
	context subsystems.ClientContext,
	sink subsystems.DataSourceUpdateSink,
	filePaths []string,
	duplicateKeysHandling DuplicateKeysHandling,
	reloaderFactory ReloaderFactory,
) (subsystems.DataSource, error) {
	abs, err := absFilePaths(filePaths)
	if err != nil {
		// COVERAGE: there's no reliable cross-platform way to simulate an invalid path in unit tests
		return nil, err
	}

	fs := &fileDataSource{
		sink:                  sink,
		absFilePaths:          abs,
		duplicateKeysHandling: duplicateKeysHandling,
		reloaderFactory:       reloaderFactory,
		loggers:               context.GetLogging().Loggers,
	}
	fs.loggers.SetPrefix("FileDataSource:")
	return fs, nil
}

func (fs *fileDataSource) IsInitialized() bool {
	return fs.isInitialized.Load()
}

func (fs *fileDataSource) Start(closeWhenReady chan<- struct{}) {
	fs.readyCh = closeWhenReady
	fs.reload()

	// If there is no reloader, then we signal readiness immediately regardless of whether the
	// data load succeeded or failed.
	if fs.reloaderFactory == nil {
		fs.signalStartComplete(fs.isInitialized.Load())
		return
	}

	// If there is a reloader, and if we haven't yet successfully loaded data, then the
	// readiness signal will happen the first time we do get valid data (in reload).
	fs.closeReloaderCh = make(chan struct{})
	err := fs.reloaderFactory(fs.absFilePaths, fs.loggers, fs.reload, fs.closeReloaderCh)
	if err != nil {
		fs.loggers.Errorf("Unable to start reloader: %s\n", err)
	}
}

// The file data source has no background activity of its own; a reloader keeps running while paused.
func (fs *fileDataSource) Pause() {}

func (fs *fileDataSource) Resume() {}

func (fs *fileDataSource) KeyAdded(key string) {
	fs.lock.Lock()
	m, loaded := fs.memberships[key], fs.loaded
	fs.lock.Unlock()
	if loaded {
		fs.sink.InitMemberships(key, m.Segments, m.LargeSegments)
	}
}

func (fs *fileDataSource) KeyRemoved(string) {}

// reload attempts to reread all of the configured source files and replace the stored data. If any
// file cannot be loaded or parsed, the stored data is not modified.
func (fs *fileDataSource) reload() {
	filesData := make([]fileData, 0)
	for _, path := range fs.absFilePaths {
		data, err := readFile(path)
		if err == nil {
			filesData = append(filesData, data)
		} else {
			fs.loggers.Errorf("Unable to load data: %s [%s]", err, path)
			fs.reportInvalidData(err)
			return
		}
	}
	changeNumber := time.Now().UnixMilli()
	merged, err := mergeFileData(fs.duplicateKeysHandling, changeNumber, filesData...)
	if err != nil {
		fs.loggers.Error(err)
		fs.reportInvalidData(err)
		return
	}

	fs.lock.Lock()
	fs.memberships = merged.memberships
	fs.loaded = true
	fs.lock.Unlock()

	for _, key := range fs.sink.Keys() {
		m := merged.memberships[key]
		fs.sink.InitMemberships(key, m.Segments, m.LargeSegments)
	}
	fs.sink.InitDefinitions(merged.definitions, merged.segments, changeNumber)
	fs.isInitialized.Store(true)
	fs.signalStartComplete(true)
	fs.sink.UpdateStatus(interfaces.SyncModeOff, nil)
}

func (fs *fileDataSource) reportInvalidData(err error) {
	fs.sink.UpdateStatus(interfaces.SyncModeOff,
		&interfaces.SyncErrorInfo{
			Kind:    interfaces.SyncErrorKindInvalidData,
			Message: err.Error(),
			Time:    time.Now(),
		})
}

func (fs *fileDataSource) signalStartComplete(succeeded bool) {
	fs.readyOnce.Do(func() {
		fs.isInitialized.Store(succeeded)
		if fs.readyCh != nil {
			close(fs.readyCh)
		}
	})
}

func absFilePaths(paths []string) ([]string, error) {
	absPaths := make([]string, 0)
	for _, p := range paths {
		absPath, err := filepath.Abs(p)
		if err != nil {
			// COVERAGE: there's no reliable cross-platform way to simulate an invalid path in unit tests
			return nil, fmt.Errorf("unable to determine absolute path for '%s'", p)
		}
		absPaths = append(absPaths, absPath)
	}
	return absPaths, nil
}

type membershipData struct {
	Segments      []string `json:"segments"`
	LargeSegments []string `json:"largeSegments"`
}

type fileData struct {
	Flags             *map[string]interfaces.Definition       `json:"flags"`
	FlagValues        *map[string]interface{}                 `json:"flagValues"`
	RuleBasedSegments *map[string]interfaces.RuleBasedSegment `json:"ruleBasedSegments"`
	Memberships       *map[string]membershipData              `json:"memberships"`
}

type mergedData struct {
	definitions []interfaces.Definition
	segments    []interfaces.RuleBasedSegment
	memberships map[string]membershipData
}

func readFile(path string) (fileData, error) {
	var data fileData
	var rawData []byte
	var err error
	if rawData, err = os.ReadFile(path); err != nil { //nolint:gosec // G304: ok to read file into variable
		return data, fmt.Errorf("unable to read file: %s", err)
	}
	if detectJSON(rawData) {
		err = json.Unmarshal(rawData, &data)
	} else {
		err = yaml.Unmarshal(rawData, &data)
	}
	if err != nil {
		err = fmt.Errorf("error parsing file: %s", err)
	}
	return data, err
}

func detectJSON(rawData []byte) bool {
	// A valid JSON file for our purposes must be an object, i.e. it must start with '{'
	return strings.HasPrefix(strings.TrimLeftFunc(string(rawData), unicode.IsSpace), "{")
}

// insertData adds an item unless its name was already used. It returns an error for a duplicate only
// when duplicates are not being ignored.
func insertData[T any](all map[string]T, kind, name string, item T, handling DuplicateKeysHandling) error {
	if _, exists := all[name]; exists {
		if handling == DuplicateKeysIgnoreAllButFirst {
			return nil
		}
		return fmt.Errorf("%s '%s' is specified by multiple files", kind, name)
	}
	all[name] = item
	return nil
}

func mergeFileData(
	handling DuplicateKeysHandling,
	changeNumber int64,
	allFileData ...fileData,
) (mergedData, error) {
	definitions := make(map[string]interfaces.Definition)
	segments := make(map[string]interfaces.RuleBasedSegment)
	memberships := make(map[string]membershipData)
	for _, d := range allFileData {
		if d.Flags != nil {
			for name, def := range *d.Flags {
				if err := insertData(definitions, "definition", name, normalizeDefinition(name, def, changeNumber),
					handling); err != nil {
					return mergedData{}, err
				}
			}
		}
		if d.FlagValues != nil {
			for name, value := range *d.FlagValues {
				if err := insertData(definitions, "definition", name, makeDefinitionWithTreatment(name, value, changeNumber),
					handling); err != nil {
					return mergedData{}, err
				}
			}
		}
		if d.RuleBasedSegments != nil {
			for name, seg := range *d.RuleBasedSegments {
				seg.Name = name
				if seg.ChangeNumber == 0 {
					seg.ChangeNumber = changeNumber
				}
				if err := insertData(segments, "rule-based segment", name, seg, handling); err != nil {
					return mergedData{}, err
				}
			}
		}
		if d.Memberships != nil {
			for key, m := range *d.Memberships {
				if err := insertData(memberships, "user key", key, m, handling); err != nil {
					return mergedData{}, err
				}
			}
		}
	}

	ret := mergedData{
		definitions: make([]interfaces.Definition, 0, len(definitions)),
		segments:    make([]interfaces.RuleBasedSegment, 0, len(segments)),
		memberships: memberships,
	}
	for _, def := range definitions {
		ret.definitions = append(ret.definitions, def)
	}
	for _, seg := range segments {
		ret.segments = append(ret.segments, seg)
	}
	sort.Slice(ret.definitions, func(i, j int) bool { return ret.definitions[i].Name < ret.definitions[j].Name })
	sort.Slice(ret.segments, func(i, j int) bool { return ret.segments[i].Name < ret.segments[j].Name })
	return ret, nil
}

func normalizeDefinition(name string, def interfaces.Definition, changeNumber int64) interfaces.Definition {
	def.Name = name
	if def.ChangeNumber == 0 {
		def.ChangeNumber = changeNumber
	}
	if def.Status == "" {
		def.Status = interfaces.StatusActive
	}
	if def.DefaultTreatment == "" {
		def.DefaultTreatment = "control"
	}
	return def
}

func makeDefinitionWithTreatment(name string, value interface{}, changeNumber int64) interfaces.Definition {
	treatment, ok := value.(string)
	if !ok {
		treatment = fmt.Sprint(value)
	}
	return interfaces.Definition{
		Name:             name,
		DefaultTreatment: treatment,
		ChangeNumber:     changeNumber,
		Status:           interfaces.StatusActive,
	}
}

// Close is called automatically when the client is closed.
func (fs *fileDataSource) Close() (err error) {
	fs.closeOnce.Do(func() {
		if fs.closeReloaderCh != nil {
			close(fs.closeReloaderCh)
		}
	})
	return nil
}
