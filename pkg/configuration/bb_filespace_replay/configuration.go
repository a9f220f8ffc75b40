package configuration

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"strings"

	"github.com/buildbarn/bb-filespace/pkg/filespace"
	"github.com/buildbarn/bb-storage/pkg/util"
	"github.com/google/go-jsonnet"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultBaseAddressBytes is the address at which file space starts
// being handed out, if not configured otherwise. Space below it is
// left for a superblock.
const DefaultBaseAddressBytes = 96

// ApplicationConfiguration is the top-level configuration of
// bb_filespace_replay.
type ApplicationConfiguration struct {
	Files []FileConfiguration `json:"files"`
}

// FileConfiguration describes a single file for which a sequence of
// file space operations is replayed.
type FileConfiguration struct {
	Name string `json:"name"`
	// Path of the file whose size tracks the end of allocation. If
	// left empty, no file is created.
	Path                string                  `json:"path"`
	BaseAddressBytes    uint64                  `json:"baseAddressBytes"`
	MaximumAddressBytes uint64                  `json:"maximumAddressBytes"`
	QuotaBytes          uint64                  `json:"quotaBytes"`
	FileSpace           filespace.Configuration `json:"fileSpace"`
	Operations          []Operation             `json:"operations"`
}

// Operation to replay. Exactly one of the fields must be set.
type Operation struct {
	Allocate          *AllocateOperation          `json:"allocate,omitempty"`
	Free              *FreeOperation              `json:"free,omitempty"`
	Extend            *ExtendOperation            `json:"extend,omitempty"`
	AllocateTemporary *AllocateTemporaryOperation `json:"allocateTemporary,omitempty"`
	Reset             *ResetOperation             `json:"reset,omitempty"`
}

// AllocateOperation allocates a block and remembers it under a name.
type AllocateOperation struct {
	Name      string `json:"name"`
	Class     string `json:"class"`
	SizeBytes uint64 `json:"sizeBytes"`
}

// FreeOperation releases a named block.
type FreeOperation struct {
	Name string `json:"name"`
}

// ExtendOperation attempts to grow a named block in place.
type ExtendOperation struct {
	Name       string `json:"name"`
	ExtraBytes uint64 `json:"extraBytes"`
}

// AllocateTemporaryOperation allocates space from the temporary
// region at the top of the address space.
type AllocateTemporaryOperation struct {
	SizeBytes uint64 `json:"sizeBytes"`
}

// ResetOperation releases the space held by the aggregator of a class.
type ResetOperation struct {
	Class string `json:"class"`
}

// GetReplayConfiguration reads the configuration from file and fill in
// default values.
func GetReplayConfiguration(path string) (*ApplicationConfiguration, error) {
	vm := jsonnet.MakeVM()
	for _, env := range os.Environ() {
		if name, value, ok := strings.Cut(env, "="); ok {
			vm.ExtVar(name, value)
		}
	}
	configurationJSON, err := vm.EvaluateFile(path)
	if err != nil {
		return nil, util.StatusWrapWithCode(err, codes.InvalidArgument, "Failed to evaluate configuration")
	}
	configuration, err := unmarshalReplayConfiguration([]byte(configurationJSON))
	if err != nil {
		return nil, util.StatusWrap(err, "Failed to retrieve configuration")
	}
	return configuration, nil
}

func unmarshalReplayConfiguration(data []byte) (*ApplicationConfiguration, error) {
	var applicationConfiguration ApplicationConfiguration
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&applicationConfiguration); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "Failed to unmarshal configuration: %s", err)
	}
	for i := range applicationConfiguration.Files {
		fileConfiguration := &applicationConfiguration.Files[i]
		setDefaultFileValues(fileConfiguration)
		if err := validateFileConfiguration(fileConfiguration); err != nil {
			return nil, util.StatusWrapf(err, "File %#v", fileConfiguration.Name)
		}
	}
	return &applicationConfiguration, nil
}

func setDefaultFileValues(fileConfiguration *FileConfiguration) {
	if fileConfiguration.BaseAddressBytes == 0 {
		fileConfiguration.BaseAddressBytes = DefaultBaseAddressBytes
	}
	if fileConfiguration.MaximumAddressBytes == 0 {
		fileConfiguration.MaximumAddressBytes = math.MaxUint64
	}
	if fileConfiguration.FileSpace.MaximumAddressBytes == 0 {
		fileConfiguration.FileSpace.MaximumAddressBytes = fileConfiguration.MaximumAddressBytes
	}
	fileConfiguration.FileSpace.SetDefaults()
}

func validateFileConfiguration(fileConfiguration *FileConfiguration) error {
	if fileConfiguration.Name == "" {
		return status.Error(codes.InvalidArgument, "No name provided")
	}
	if fileConfiguration.BaseAddressBytes >= fileConfiguration.MaximumAddressBytes {
		return status.Errorf(codes.InvalidArgument, "Base address %d must be below maximum address %d", fileConfiguration.BaseAddressBytes, fileConfiguration.MaximumAddressBytes)
	}
	if err := fileConfiguration.FileSpace.Validate(); err != nil {
		return util.StatusWrap(err, "Invalid file space configuration")
	}
	for i, operation := range fileConfiguration.Operations {
		if err := validateOperation(operation); err != nil {
			return util.StatusWrapf(err, "Operation %d", i)
		}
	}
	return nil
}

func validateOperation(operation Operation) error {
	set := 0
	if operation.Allocate != nil {
		set++
		if _, err := filespace.ParseClass(operation.Allocate.Class); err != nil {
			return err
		}
	}
	if operation.Free != nil {
		set++
	}
	if operation.Extend != nil {
		set++
	}
	if operation.AllocateTemporary != nil {
		set++
	}
	if operation.Reset != nil {
		set++
		if _, err := filespace.ParseClass(operation.Reset.Class); err != nil {
			return err
		}
	}
	if set != 1 {
		return status.Errorf(codes.InvalidArgument, "Exactly one operation type must be set, while %d are set", set)
	}
	return nil
}
