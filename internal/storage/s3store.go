package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/nilvm/node/internal/audit"
	"github.com/nilvm/node/internal/field"
	"github.com/nilvm/node/internal/orchestrator"
	"github.com/nilvm/node/internal/preprocessing"
	"github.com/nilvm/node/internal/share"
	"github.com/nilvm/node/internal/vm"
)

// BlobStore is a content-addressed object store over an S3-compatible
// bucket, holding programs and stored values keyed by id (spec.md §6).
type BlobStore struct {
	client *s3.Client
	bucket string
}

// S3Config names the endpoint/region/credentials BlobStore connects with.
// A non-empty Endpoint overrides the default AWS resolver, for
// S3-compatible (MinIO, etc.) deployments.
type S3Config struct {
	Bucket      string
	Region      string
	Endpoint    string
	AccessKeyID string
	SecretKey   string
}

// NewBlobStore builds a BlobStore from cfg.
func NewBlobStore(ctx context.Context, cfg S3Config) (*BlobStore, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &BlobStore{client: client, bucket: cfg.Bucket}, nil
}

// PutBlob uploads data under key.
func (s *BlobStore) PutBlob(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("storage: put blob %s: %w", key, err)
	}
	return nil
}

// DeleteBlob removes the blob stored under key.
func (s *BlobStore) DeleteBlob(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("storage: delete blob %s: %w", key, err)
	}
	return nil
}

// GetBlob downloads the blob stored under key.
func (s *BlobStore) GetBlob(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: get blob %s: %w", key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// wireValue is the JSON-serializable form of a vm.Value, since
// field.Elem/share.Share carry unexported representations.
type wireValue struct {
	Kind       string `json:"kind"` // "public" or "private"
	FieldName  string `json:"field_name"`
	Elem       string `json:"elem"`        // decimal
	ShareIndex uint64 `json:"share_index"` // only for "private"
}

func toWire(v vm.Value) (wireValue, error) {
	switch x := v.(type) {
	case vm.Public:
		return wireValue{Kind: "public", FieldName: string(x.Elem.Field().Name()), Elem: x.Elem.Int().Text(10)}, nil
	case vm.Private:
		return wireValue{
			Kind:       "private",
			FieldName:  string(x.Share.Value.Field().Name()),
			Elem:       x.Share.Value.Int().Text(10),
			ShareIndex: x.Share.Index,
		}, nil
	default:
		return wireValue{}, fmt.Errorf("storage: unsupported value type %T", v)
	}
}

func fromWire(w wireValue) (vm.Value, error) {
	n, ok := new(big.Int).SetString(w.Elem, 10)
	if !ok {
		return nil, fmt.Errorf("storage: malformed element %q", w.Elem)
	}
	f := field.New(field.Name(w.FieldName))
	elem := f.NewElem(n)
	switch w.Kind {
	case "public":
		return vm.Public{Elem: elem}, nil
	case "private":
		return vm.Private{Share: share.Share{Index: w.ShareIndex, Value: elem}}, nil
	default:
		return nil, fmt.Errorf("storage: unknown value kind %q", w.Kind)
	}
}

// encodeValues serializes a named value map (program inputs or compute
// outputs) to a single JSON blob.
func encodeValues(values map[string]vm.Value) ([]byte, error) {
	wire := make(map[string]wireValue, len(values))
	for name, v := range values {
		w, err := toWire(v)
		if err != nil {
			return nil, err
		}
		wire[name] = w
	}
	return json.Marshal(wire)
}

func decodeValues(data []byte) (map[string]vm.Value, error) {
	var wire map[string]wireValue
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("storage: decode values: %w", err)
	}
	out := make(map[string]vm.Value, len(wire))
	for name, w := range wire {
		v, err := fromWire(w)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

// ValueStore adapts BlobStore to orchestrator.ValueStore, resolving a
// values_id to the JSON blob stored at that key.
type ValueStore struct {
	blobs *BlobStore
}

// NewValueStore wraps blobs as an orchestrator.ValueStore.
func NewValueStore(blobs *BlobStore) ValueStore { return ValueStore{blobs: blobs} }

// FetchValues implements orchestrator.ValueStore.
func (vs ValueStore) FetchValues(ctx context.Context, valuesID string) (map[string]vm.Value, error) {
	data, err := vs.blobs.GetBlob(ctx, "values/"+valuesID)
	if err != nil {
		return nil, err
	}
	return decodeValues(data)
}

// StoreValues persists values under valuesID, for later FetchValues calls.
func (vs ValueStore) StoreValues(ctx context.Context, valuesID string, values map[string]vm.Value) error {
	data, err := encodeValues(values)
	if err != nil {
		return err
	}
	return vs.blobs.PutBlob(ctx, "values/"+valuesID, data)
}

// StoreContentAddressed persists values under the blake2b content id of
// their encoded form and returns that id, for callers minting a fresh
// values_id rather than updating one the client named.
func (vs ValueStore) StoreContentAddressed(ctx context.Context, values map[string]vm.Value) (string, error) {
	data, err := encodeValues(values)
	if err != nil {
		return "", err
	}
	valuesID := ContentID(data)
	if err := vs.blobs.PutBlob(ctx, "values/"+valuesID, data); err != nil {
		return "", err
	}
	return valuesID, nil
}

// DeleteValues removes the value blob stored under valuesID.
func (vs ValueStore) DeleteValues(ctx context.Context, valuesID string) error {
	return vs.blobs.DeleteBlob(ctx, "values/"+valuesID)
}

// PermissionsStore persists the access-control entry attached to a stored
// values_id (spec.md §6: `{owner, retrieve[], update[], delete[],
// compute[{user, program_ids[]}]}`), JSON-encoded under the same bucket the
// values themselves live in.
type PermissionsStore struct {
	blobs *BlobStore
}

// NewPermissionsStore wraps blobs as a PermissionsStore.
func NewPermissionsStore(blobs *BlobStore) PermissionsStore { return PermissionsStore{blobs: blobs} }

// ComputePermission grants one user the right to invoke a fixed set of
// program ids against a stored value.
type ComputePermission struct {
	User       string   `json:"user"`
	ProgramIDs []string `json:"program_ids"`
}

// Permissions is one values_id's access-control entry.
type Permissions struct {
	Owner    string              `json:"owner"`
	Retrieve []string            `json:"retrieve"`
	Update   []string            `json:"update"`
	Delete   []string            `json:"delete"`
	Compute  []ComputePermission `json:"compute"`
}

// CanRetrieve reports whether user may retrieve the value this entry guards.
func (p Permissions) CanRetrieve(user string) bool {
	return p.Owner == user || contains(p.Retrieve, user)
}

// CanUpdate reports whether user may overwrite the value this entry guards.
func (p Permissions) CanUpdate(user string) bool {
	return p.Owner == user || contains(p.Update, user)
}

// CanDelete reports whether user may delete the value this entry guards.
func (p Permissions) CanDelete(user string) bool {
	return p.Owner == user || contains(p.Delete, user)
}

// CanCompute reports whether user may invoke programID against the value
// this entry guards.
func (p Permissions) CanCompute(user, programID string) bool {
	if p.Owner == user {
		return true
	}
	for _, c := range p.Compute {
		if c.User == user && contains(c.ProgramIDs, programID) {
			return true
		}
	}
	return false
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// Get fetches the Permissions entry for valuesID.
func (ps PermissionsStore) Get(ctx context.Context, valuesID string) (Permissions, error) {
	data, err := ps.blobs.GetBlob(ctx, "permissions/"+valuesID)
	if err != nil {
		return Permissions{}, err
	}
	var p Permissions
	if err := json.Unmarshal(data, &p); err != nil {
		return Permissions{}, fmt.Errorf("storage: decode permissions: %w", err)
	}
	return p, nil
}

// Put overwrites the Permissions entry for valuesID.
func (ps PermissionsStore) Put(ctx context.Context, valuesID string, p Permissions) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return ps.blobs.PutBlob(ctx, "permissions/"+valuesID, data)
}

// OutputStore adapts BlobStore to orchestrator.OutputStore, storing a
// finished compute's outputs under its compute_id.
type OutputStore struct {
	blobs *BlobStore
}

// NewOutputStore wraps blobs as an orchestrator.OutputStore.
func NewOutputStore(blobs *BlobStore) OutputStore { return OutputStore{blobs: blobs} }

// StoreOutputs implements orchestrator.OutputStore.
func (os OutputStore) StoreOutputs(ctx context.Context, computeID uuid.UUID, outputs map[string]vm.Value) error {
	data, err := encodeValues(outputs)
	if err != nil {
		return err
	}
	return os.blobs.PutBlob(ctx, "outputs/"+computeID.String(), data)
}

// wireProgram is the JSON-serializable form of an orchestrator.Program's
// static shape. Build is not serializable, so ProgramStore reconstructs it
// from the Bytecode/ProtocolBody/Contract blob via a caller-supplied
// builder (per spec.md §3, a Program is Bytecode + ProtocolBody +
// Contract) rather than storing a Go closure.
type wireProgram struct {
	ID           string                 `json:"id"`
	AuditProgram audit.Program          `json:"audit_program"`
	Requirements map[string]uint64      `json:"requirements"`
}

// ProgramBuilder reconstructs a runnable orchestrator.Program.Build
// closure from a program's id, given its raw bytecode blob. Supplied by
// the Nada-compiler-adjacent layer this package treats as external (spec.md
// §1 lists the Nada compiler frontend as out of scope).
type ProgramBuilder func(programID string, bytecode []byte) (func(computeID uuid.UUID, inputs map[string]vm.Value) (*vm.Process, error), error)

// ProgramStore adapts BlobStore to orchestrator.ProgramStore.
type ProgramStore struct {
	blobs *BlobStore
	build ProgramBuilder
}

// NewProgramStore wraps blobs as an orchestrator.ProgramStore, using build
// to reconstruct each Program's executable closure on fetch.
func NewProgramStore(blobs *BlobStore, build ProgramBuilder) ProgramStore {
	return ProgramStore{blobs: blobs, build: build}
}

// FetchProgram implements orchestrator.ProgramStore.
func (ps ProgramStore) FetchProgram(ctx context.Context, programID string) (orchestrator.Program, error) {
	metaData, err := ps.blobs.GetBlob(ctx, "programs/"+programID+"/meta.json")
	if err != nil {
		return orchestrator.Program{}, err
	}
	var meta wireProgram
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return orchestrator.Program{}, fmt.Errorf("storage: decode program meta: %w", err)
	}

	bytecode, err := ps.blobs.GetBlob(ctx, "programs/"+programID+"/bytecode")
	if err != nil {
		return orchestrator.Program{}, err
	}
	if want := ContentID(bytecode); want != programID {
		return orchestrator.Program{}, fmt.Errorf("storage: program %s failed content-address check: stored bytecode hashes to %s", programID, want)
	}

	build, err := ps.build(programID, bytecode)
	if err != nil {
		return orchestrator.Program{}, fmt.Errorf("storage: build program %s: %w", programID, err)
	}

	requirements := make(map[preprocessing.Element]uint64, len(meta.Requirements))
	for k, v := range meta.Requirements {
		requirements[preprocessing.Element(k)] = v
	}

	return orchestrator.Program{
		ID:           meta.ID,
		AuditProgram: meta.AuditProgram,
		Requirements: requirements,
		Build:        build,
	}, nil
}
