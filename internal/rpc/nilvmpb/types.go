package nilvmpb

// SignedReceipt is a payment receipt attached to every billable request, per
// spec.md §6: a signed proof of payment carrying the operation kind and a
// nonce the node enforces as single-use (internal/storage.Bookkeeping's
// used_nonces table).
type SignedReceipt struct {
	OperationKind string
	Nonce         []byte
	Payer         string
	Signature     []byte
}

// --- Payments -----------------------------------------------------------

type PriceQuoteRequest struct {
	OperationKind string
	SizeHint      uint64
}

type PriceQuoteResponse struct {
	Price uint64
}

type PaymentReceiptRequest struct {
	Receipt SignedReceipt
}

type PaymentReceiptResponse struct {
	Accepted bool
}

// --- Permissions ----------------------------------------------------------

// ComputePermission grants one user the right to invoke a fixed set of
// program ids against a stored value.
type ComputePermission struct {
	User       string
	ProgramIDs []string
}

// Permissions is the access-control entry attached to a stored value, per
// spec.md §6: `{owner, retrieve[], update[], delete[], compute[{user,
// program_ids[]}]}`.
type Permissions struct {
	Owner    string
	Retrieve []string
	Update   []string
	Delete   []string
	Compute  []ComputePermission
}

type RetrievePermissionsRequest struct {
	ValuesID string
}

type RetrievePermissionsResponse struct {
	Permissions Permissions
}

type OverwritePermissionsRequest struct {
	Receipt     SignedReceipt
	ValuesID    string
	Permissions Permissions
}

type OverwritePermissionsResponse struct{}

type UpdatePermissionsRequest struct {
	Receipt          SignedReceipt
	ValuesID         string
	AddRetrieve      []string
	RemoveRetrieve   []string
	AddUpdate        []string
	RemoveUpdate     []string
	AddDelete        []string
	RemoveDelete     []string
	AddCompute       []ComputePermission
	RemoveComputeFor []string
}

type UpdatePermissionsResponse struct{}

// --- Values ---------------------------------------------------------------

// WireValue is a vm.Value flattened for the wire: a secret-shared value
// carries Share/ShareIndex, a public value carries only Elem.
type WireValue struct {
	Name       string
	Kind       string // "Public" or "Private"
	FieldName  string
	Elem       string // decimal, present when Kind == "Public"
	ShareValue string // decimal, present when Kind == "Private"
	ShareIndex uint64
}

type StoreValuesRequest struct {
	Receipt          SignedReceipt
	Permissions      *Permissions
	UpdateIdentifier string
	Values           []WireValue
}

type StoreValuesResponse struct {
	ValuesID string
}

type RetrieveValuesRequest struct {
	Receipt  SignedReceipt
	ValuesID string
}

type RetrieveValuesResponse struct {
	Values []WireValue
}

type DeleteValuesRequest struct {
	Receipt  SignedReceipt
	ValuesID string
}

type DeleteValuesResponse struct{}

// --- Compute ----------------------------------------------------------------

type InputBinding struct {
	Name     string
	ValuesID string
	ValueKey string
}

type OutputBinding struct {
	Name string
	User string
}

type InvokeComputeRequest struct {
	Receipt        SignedReceipt
	ProgramID      string
	ValueIDs       []string
	InputBindings  []InputBinding
	OutputBindings []OutputBinding
	Values         []WireValue
}

type InvokeComputeResponse struct {
	ComputeID string
}

// StreamComputeMessage is one frame of the internal-only, server-streaming
// StreamCompute call a leader uses to fan a compute invocation out to its
// peers; internal traffic never crosses SignedReceipt verification.
type StreamComputeMessage struct {
	ComputeID string
	ProgramID string
	Payload   []byte
}

type RetrieveResultsRequest struct {
	ComputeID string
}

// RetrieveResultsUpdate is one message of the stream spec.md §6 describes as
// {WaitingComputation | Success{values[]} | Error{string}}.
type RetrieveResultsUpdate struct {
	Waiting bool
	Values  []WireValue
	Error   string
}

// --- Preprocessing ----------------------------------------------------------

// PreprocessingMessage is one frame of the GeneratePreprocessing or
// GenerateAuxiliaryMaterial bidi stream: {generation_id, element|material,
// bincode_message}. The routing-key fields (FromPeer, Peers) and Payload
// are part of the frame, but this node's Broadcaster never sets them and
// PreprocessingServer never reads them.
type PreprocessingMessage struct {
	GenerationID string
	Element      string // preprocessing.Element name, for GeneratePreprocessing
	Material     string // auxiliary material kind, for GenerateAuxiliaryMaterial
	BatchID      uint64
	BatchSize    uint64

	// First-message-only routing keys.
	FromPeer uint64
	Peers    []uint64

	Payload []byte // the protocol library's gob-encoded wire payload
}

// --- LeaderQueries -----------------------------------------------------------

type PoolStatusRequest struct{}

type PoolRange struct {
	Start uint64
	End   uint64
}

type PoolStatusResponse struct {
	Offsets                    map[string]PoolRange
	PreprocessingActive        bool
	AuxiliaryMaterialAvailable bool
}

// --- Membership ---------------------------------------------------------------

type ClusterRequest struct{}

type MemberInfo struct {
	NodeID    string
	PublicKey string
	Endpoint  string
}

type ClusterResponse struct {
	Members          []MemberInfo
	Leader           string
	PolynomialDegree int
	Kappa            int
	Prime            string
}

type NodeIDRequest struct{}

type NodeIDResponse struct {
	NodeID string
}
