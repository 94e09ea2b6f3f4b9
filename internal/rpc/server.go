package rpc

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nilvm/node/internal/errs"
	"github.com/nilvm/node/internal/fabric"
	"github.com/nilvm/node/internal/membership"
	"github.com/nilvm/node/internal/orchestrator"
	"github.com/nilvm/node/internal/preprocessing"
	"github.com/nilvm/node/internal/rpc/nilvmpb"
	"github.com/nilvm/node/internal/storage"
	"github.com/nilvm/node/internal/vm"
)

// Pricing quotes a flat per-operation price. spec.md §1 lists the payments
// ledger itself as an external collaborator; this node only needs to be
// able to quote and accept a receipt against one, so Pricing stays a small
// lookup rather than a constructed pricing engine.
type Pricing map[string]uint64

// DefaultPricing returns a flat price table covering every billable
// operation kind spec.md §6 names.
func DefaultPricing() Pricing {
	return Pricing{
		"StoreValues":     10,
		"RetrieveValues":  5,
		"DeleteValues":    1,
		"InvokeCompute":   100,
		"UpdatePermissions": 2,
	}
}

// Server implements every nilvmpb server interface, wrapping the node's
// collaborators the way Erigon's txpool gRPC server wraps a txpool.TxPool:
// one struct holding the business-logic types, one method per RPC
// delegating straight into them.
type Server struct {
	self    membership.NodeID
	cluster membership.Cluster

	orch    *orchestrator.Orchestrator
	manager *preprocessing.Manager
	fab     *fabric.Fabric
	books   *storage.Bookkeeping
	values  storage.ValueStore
	perms   storage.PermissionsStore
	pricing Pricing

	dialer *PeerDialer
	log    *logrus.Entry

	auxMaterialAvailable func() bool
}

// Deps wires Server's collaborators at construction.
type Deps struct {
	Self                 membership.NodeID
	Cluster              membership.Cluster
	Orchestrator         *orchestrator.Orchestrator
	Manager              *preprocessing.Manager
	Fabric               *fabric.Fabric
	Bookkeeping          *storage.Bookkeeping
	Values               storage.ValueStore
	Permissions          storage.PermissionsStore
	Pricing              Pricing
	Dialer               *PeerDialer
	Log                  *logrus.Entry
	AuxMaterialAvailable func() bool
}

// NewServer constructs a Server from deps.
func NewServer(deps Deps) *Server {
	pricing := deps.Pricing
	if pricing == nil {
		pricing = DefaultPricing()
	}
	auxAvailable := deps.AuxMaterialAvailable
	if auxAvailable == nil {
		auxAvailable = func() bool { return false }
	}
	return &Server{
		self:                 deps.Self,
		cluster:              deps.Cluster,
		orch:                 deps.Orchestrator,
		manager:              deps.Manager,
		fab:                  deps.Fabric,
		books:                deps.Bookkeeping,
		values:               deps.Values,
		perms:                deps.Permissions,
		pricing:              pricing,
		dialer:               deps.Dialer,
		log:                  deps.Log.WithField("component", "rpc"),
		auxMaterialAvailable: auxAvailable,
	}
}

// --- Payments -------------------------------------------------------------

func (s *Server) PriceQuote(ctx context.Context, req *nilvmpb.PriceQuoteRequest) (*nilvmpb.PriceQuoteResponse, error) {
	price, ok := s.pricing[req.OperationKind]
	if !ok {
		return nil, errs.New(errs.KindInvalidRequest, fmt.Errorf("unknown operation kind %q", req.OperationKind))
	}
	return &nilvmpb.PriceQuoteResponse{Price: price + req.SizeHint}, nil
}

func (s *Server) PaymentReceipt(ctx context.Context, req *nilvmpb.PaymentReceiptRequest) (*nilvmpb.PaymentReceiptResponse, error) {
	if err := s.checkReceipt(ctx, req.Receipt); err != nil {
		return nil, err
	}
	return &nilvmpb.PaymentReceiptResponse{Accepted: true}, nil
}

// checkReceipt enforces spec.md §8's nonce-uniqueness invariant for every
// billable request: a receipt's (nonce, operation_kind) pair may be
// consumed exactly once. Signature verification against the payer's
// declared public key is out of scope here (spec.md §1 treats the payments
// ledger as an external collaborator this node trusts the receipt from).
func (s *Server) checkReceipt(ctx context.Context, receipt nilvmpb.SignedReceipt) error {
	if len(receipt.Nonce) == 0 {
		return errs.New(errs.KindInvalidRequest, fmt.Errorf("missing receipt nonce"))
	}
	err := s.books.InsertNonce(ctx, receipt.Nonce, receipt.OperationKind, time.Now().Add(24*time.Hour))
	if err == storage.ErrDuplicateNonce {
		return errs.New(errs.KindDuplicate, err)
	}
	if err != nil {
		return errs.New(errs.KindStorageUnavailable, err)
	}
	return nil
}

// --- Permissions ------------------------------------------------------------

func (s *Server) RetrievePermissions(ctx context.Context, req *nilvmpb.RetrievePermissionsRequest) (*nilvmpb.RetrievePermissionsResponse, error) {
	p, err := s.perms.Get(ctx, req.ValuesID)
	if err != nil {
		return nil, errs.New(errs.KindNotFound, err)
	}
	return &nilvmpb.RetrievePermissionsResponse{Permissions: toWirePermissions(p)}, nil
}

func (s *Server) OverwritePermissions(ctx context.Context, req *nilvmpb.OverwritePermissionsRequest) (*nilvmpb.OverwritePermissionsResponse, error) {
	if err := s.checkReceipt(ctx, req.Receipt); err != nil {
		return nil, err
	}
	existing, err := s.perms.Get(ctx, req.ValuesID)
	if err == nil && !existing.CanUpdate(req.Receipt.Payer) {
		return nil, errs.New(errs.KindForbidden, fmt.Errorf("%s may not overwrite permissions for %s", req.Receipt.Payer, req.ValuesID))
	}
	if err := s.perms.Put(ctx, req.ValuesID, fromWirePermissions(req.Permissions)); err != nil {
		return nil, errs.New(errs.KindStorageUnavailable, err)
	}
	return &nilvmpb.OverwritePermissionsResponse{}, nil
}

func (s *Server) UpdatePermissions(ctx context.Context, req *nilvmpb.UpdatePermissionsRequest) (*nilvmpb.UpdatePermissionsResponse, error) {
	if err := s.checkReceipt(ctx, req.Receipt); err != nil {
		return nil, err
	}
	p, err := s.perms.Get(ctx, req.ValuesID)
	if err != nil {
		return nil, errs.New(errs.KindNotFound, err)
	}
	if !p.CanUpdate(req.Receipt.Payer) {
		return nil, errs.New(errs.KindForbidden, fmt.Errorf("%s may not update permissions for %s", req.Receipt.Payer, req.ValuesID))
	}

	p.Retrieve = applyListEdit(p.Retrieve, req.AddRetrieve, req.RemoveRetrieve)
	p.Update = applyListEdit(p.Update, req.AddUpdate, req.RemoveUpdate)
	p.Delete = applyListEdit(p.Delete, req.AddDelete, req.RemoveDelete)

	removeFor := map[string]bool{}
	for _, u := range req.RemoveComputeFor {
		removeFor[u] = true
	}
	compute := make([]storage.ComputePermission, 0, len(p.Compute))
	for _, c := range p.Compute {
		if !removeFor[c.User] {
			compute = append(compute, c)
		}
	}
	for _, add := range req.AddCompute {
		compute = append(compute, storage.ComputePermission{User: add.User, ProgramIDs: add.ProgramIDs})
	}
	p.Compute = compute

	if err := s.perms.Put(ctx, req.ValuesID, p); err != nil {
		return nil, errs.New(errs.KindStorageUnavailable, err)
	}
	return &nilvmpb.UpdatePermissionsResponse{}, nil
}

func applyListEdit(list []string, add, remove []string) []string {
	removed := map[string]bool{}
	for _, r := range remove {
		removed[r] = true
	}
	out := make([]string, 0, len(list)+len(add))
	for _, v := range list {
		if !removed[v] {
			out = append(out, v)
		}
	}
	have := map[string]bool{}
	for _, v := range out {
		have[v] = true
	}
	for _, v := range add {
		if !have[v] {
			out = append(out, v)
			have[v] = true
		}
	}
	return out
}

// --- Values -----------------------------------------------------------------

func (s *Server) StoreValues(ctx context.Context, req *nilvmpb.StoreValuesRequest) (*nilvmpb.StoreValuesResponse, error) {
	if err := s.checkReceipt(ctx, req.Receipt); err != nil {
		return nil, err
	}
	values, err := wireToValues(req.Values)
	if err != nil {
		return nil, errs.New(errs.KindInvalidRequest, err)
	}

	valuesID := req.UpdateIdentifier
	if valuesID == "" {
		valuesID, err = s.values.StoreContentAddressed(ctx, values)
		if err != nil {
			return nil, errs.New(errs.KindStorageUnavailable, err)
		}
	} else {
		existing, err := s.perms.Get(ctx, valuesID)
		if err == nil && !existing.CanUpdate(req.Receipt.Payer) {
			return nil, errs.New(errs.KindForbidden, fmt.Errorf("%s may not update %s", req.Receipt.Payer, valuesID))
		}
		if err := s.values.StoreValues(ctx, valuesID, values); err != nil {
			return nil, errs.New(errs.KindStorageUnavailable, err)
		}
	}

	if req.Permissions != nil {
		if err := s.perms.Put(ctx, valuesID, fromWirePermissions(*req.Permissions)); err != nil {
			return nil, errs.New(errs.KindStorageUnavailable, err)
		}
	} else if req.UpdateIdentifier == "" {
		if err := s.perms.Put(ctx, valuesID, storage.Permissions{Owner: req.Receipt.Payer}); err != nil {
			return nil, errs.New(errs.KindStorageUnavailable, err)
		}
	}

	return &nilvmpb.StoreValuesResponse{ValuesID: valuesID}, nil
}

func (s *Server) RetrieveValues(ctx context.Context, req *nilvmpb.RetrieveValuesRequest) (*nilvmpb.RetrieveValuesResponse, error) {
	if err := s.checkReceipt(ctx, req.Receipt); err != nil {
		return nil, err
	}
	p, err := s.perms.Get(ctx, req.ValuesID)
	if err != nil {
		return nil, errs.New(errs.KindNotFound, err)
	}
	if !p.CanRetrieve(req.Receipt.Payer) {
		return nil, errs.New(errs.KindForbidden, fmt.Errorf("%s may not retrieve %s", req.Receipt.Payer, req.ValuesID))
	}
	values, err := s.values.FetchValues(ctx, req.ValuesID)
	if err != nil {
		return nil, errs.New(errs.KindNotFound, err)
	}
	wire, err := valuesToWire(values)
	if err != nil {
		return nil, errs.New(errs.KindBugOrPanic, err)
	}
	return &nilvmpb.RetrieveValuesResponse{Values: wire}, nil
}

func (s *Server) DeleteValues(ctx context.Context, req *nilvmpb.DeleteValuesRequest) (*nilvmpb.DeleteValuesResponse, error) {
	if err := s.checkReceipt(ctx, req.Receipt); err != nil {
		return nil, err
	}
	p, err := s.perms.Get(ctx, req.ValuesID)
	if err != nil {
		return nil, errs.New(errs.KindNotFound, err)
	}
	if !p.CanDelete(req.Receipt.Payer) {
		return nil, errs.New(errs.KindForbidden, fmt.Errorf("%s may not delete %s", req.Receipt.Payer, req.ValuesID))
	}
	if err := s.values.DeleteValues(ctx, req.ValuesID); err != nil {
		return nil, errs.New(errs.KindStorageUnavailable, err)
	}
	return &nilvmpb.DeleteValuesResponse{}, nil
}

// --- Membership ---------------------------------------------------------------

func (s *Server) Cluster(ctx context.Context, req *nilvmpb.ClusterRequest) (*nilvmpb.ClusterResponse, error) {
	members := s.cluster.Members()
	out := make([]nilvmpb.MemberInfo, len(members))
	for i, m := range members {
		out[i] = nilvmpb.MemberInfo{NodeID: string(m.NodeID), PublicKey: m.PublicKey, Endpoint: m.Endpoint}
	}
	return &nilvmpb.ClusterResponse{
		Members:          out,
		Leader:           string(s.cluster.Leader()),
		PolynomialDegree: s.cluster.PolynomialDegree(),
		Kappa:            s.cluster.Kappa(),
		Prime:            string(s.cluster.Field().Name()),
	}, nil
}

func (s *Server) NodeID(ctx context.Context, req *nilvmpb.NodeIDRequest) (*nilvmpb.NodeIDResponse, error) {
	return &nilvmpb.NodeIDResponse{NodeID: string(s.self)}, nil
}

// --- LeaderQueries --------------------------------------------------------------

func (s *Server) PoolStatus(ctx context.Context, req *nilvmpb.PoolStatusRequest) (*nilvmpb.PoolStatusResponse, error) {
	offsets := make(map[string]nilvmpb.PoolRange, len(preprocessing.Elements))
	for _, element := range preprocessing.Elements {
		snap := s.manager.Pool(element).Snapshot()
		offsets[string(element)] = nilvmpb.PoolRange{Start: snap.Reserved, End: snap.Generated}
	}
	return &nilvmpb.PoolStatusResponse{
		Offsets:                    offsets,
		PreprocessingActive:        s.cluster.IsLeader(s.self),
		AuxiliaryMaterialAvailable: s.auxMaterialAvailable(),
	}, nil
}

// --- Fabric -----------------------------------------------------------------

func (s *Server) Send(ctx context.Context, req *nilvmpb.EnvelopeMessage) (*nilvmpb.EnvelopeAck, error) {
	err := s.fab.Deliver(fabric.Envelope{
		InstanceID: req.InstanceID,
		From:       req.From,
		Round:      req.Round,
		Payload:    req.Payload,
	})
	if err != nil {
		return nil, errs.New(errs.KindPeerDisconnected, err)
	}
	return &nilvmpb.EnvelopeAck{}, nil
}

// --- Compute ------------------------------------------------------------------

// computeFanoutPayload is what a leader's StreamCompute frame carries to
// every peer: enough of orchestrator.Request for each node to admit the
// identical ComputeInstance under the leader-assigned compute id.
type computeFanoutPayload struct {
	ValuesID       string
	OutputBindings []string
	Deadline       time.Duration
}

func (s *Server) InvokeCompute(ctx context.Context, req *nilvmpb.InvokeComputeRequest) (*nilvmpb.InvokeComputeResponse, error) {
	if err := s.checkReceipt(ctx, req.Receipt); err != nil {
		return nil, err
	}

	valuesID, err := s.resolveInputs(ctx, req)
	if err != nil {
		return nil, err
	}

	outputBindings := make([]string, len(req.OutputBindings))
	for i, b := range req.OutputBindings {
		outputBindings[i] = b.User
	}

	computeID := uuid.New()
	orchReq := orchestrator.Request{
		ProgramID:      req.ProgramID,
		ValuesID:       valuesID,
		OutputBindings: outputBindings,
	}

	if _, err := s.orch.InvokeComputeWithID(ctx, computeID, orchReq); err != nil {
		return nil, err
	}

	s.fanOutCompute(ctx, computeID, req.ProgramID, computeFanoutPayload{
		ValuesID:       valuesID,
		OutputBindings: outputBindings,
	})

	return &nilvmpb.InvokeComputeResponse{ComputeID: computeID.String()}, nil
}

// resolveInputs merges req's input bindings (each naming a source values_id
// and a key within it) and any inline values into one map, persists it
// under a fresh values id, and returns that id — orchestrator.Request only
// ever names a single ValuesID, so multi-source InvokeCompute requests are
// flattened to one synthesized blob before admission.
func (s *Server) resolveInputs(ctx context.Context, req *nilvmpb.InvokeComputeRequest) (string, error) {
	merged := map[string]vm.Value{}

	for _, binding := range req.InputBindings {
		source, err := s.values.FetchValues(ctx, binding.ValuesID)
		if err != nil {
			return "", errs.New(errs.KindNotFound, fmt.Errorf("fetch input binding %q from %q: %w", binding.Name, binding.ValuesID, err))
		}
		v, ok := source[binding.ValueKey]
		if !ok {
			return "", errs.New(errs.KindInvalidRequest, fmt.Errorf("values %q has no key %q", binding.ValuesID, binding.ValueKey))
		}
		merged[binding.Name] = v
	}

	for _, id := range req.ValueIDs {
		if _, already := merged[id]; already {
			continue
		}
		source, err := s.values.FetchValues(ctx, id)
		if err != nil {
			return "", errs.New(errs.KindNotFound, fmt.Errorf("fetch values %q: %w", id, err))
		}
		for k, v := range source {
			merged[k] = v
		}
	}

	inline, err := wireToValues(req.Values)
	if err != nil {
		return "", errs.New(errs.KindInvalidRequest, err)
	}
	for name, v := range inline {
		merged[name] = v
	}

	valuesID, err := s.values.StoreContentAddressed(ctx, merged)
	if err != nil {
		return "", errs.New(errs.KindStorageUnavailable, err)
	}
	return valuesID, nil
}

// fanOutCompute broadcasts computeID to every other cluster member over
// Compute.StreamCompute so every node admits the same ComputeInstance
// concurrently (MPC correctness requires every party run the VM against
// its own shares for the same logical compute). Best-effort: a peer that
// cannot be reached fails that peer's participation, logged rather than
// failing the whole call, since spec.md's admission path has no built-in
// retry for a down peer.
func (s *Server) fanOutCompute(ctx context.Context, computeID uuid.UUID, programID string, payload computeFanoutPayload) {
	if s.dialer == nil {
		return
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(payload); err != nil {
		s.log.WithError(err).Warn("rpc: encode compute fan-out payload")
		return
	}
	msg := &nilvmpb.StreamComputeMessage{ComputeID: computeID.String(), ProgramID: programID, Payload: buf.Bytes()}

	for _, member := range s.cluster.Members() {
		if member.NodeID == s.self {
			continue
		}
		peer, ok := s.cluster.PeerID(member.NodeID)
		if !ok {
			continue
		}
		go func(peer uint64) {
			client, err := s.dialer.Compute(peer)
			if err != nil {
				s.log.WithError(err).WithField("peer", peer).Warn("rpc: dial peer for compute fan-out")
				return
			}
			stream, err := client.StreamCompute(ctx, msg)
			if err != nil {
				s.log.WithError(err).WithField("peer", peer).Warn("rpc: fan out compute")
				return
			}
			for {
				if _, err := stream.Recv(); err != nil {
					return
				}
			}
		}(peer)
	}
}

// StreamCompute implements the peer side of fanOutCompute: admit the same
// compute id locally, then acknowledge.
func (s *Server) StreamCompute(req *nilvmpb.StreamComputeMessage, stream nilvmpb.Compute_StreamComputeServer) error {
	computeID, err := uuid.Parse(req.ComputeID)
	if err != nil {
		return errs.New(errs.KindInvalidRequest, err)
	}

	var payload computeFanoutPayload
	if err := gob.NewDecoder(bytes.NewReader(req.Payload)).Decode(&payload); err != nil {
		return errs.New(errs.KindInvalidRequest, err)
	}

	orchReq := orchestrator.Request{
		ProgramID:      req.ProgramID,
		ValuesID:       payload.ValuesID,
		OutputBindings: payload.OutputBindings,
		Deadline:       payload.Deadline,
	}
	if _, err := s.orch.InvokeComputeWithID(stream.Context(), computeID, orchReq); err != nil {
		return err
	}
	return stream.Send(&nilvmpb.StreamComputeMessage{ComputeID: req.ComputeID})
}

func (s *Server) RetrieveResults(req *nilvmpb.RetrieveResultsRequest, stream nilvmpb.Compute_RetrieveResultsServer) error {
	computeID, err := uuid.Parse(req.ComputeID)
	if err != nil {
		return errs.New(errs.KindInvalidRequest, err)
	}
	inst, ok := s.orch.Lookup(computeID)
	if !ok {
		return errs.New(errs.KindNotFound, fmt.Errorf("no compute instance %s", req.ComputeID))
	}
	for update := range inst.Updates() {
		switch {
		case update.Err != nil:
			return stream.Send(&nilvmpb.RetrieveResultsUpdate{Error: update.Err.Error()})
		case update.Success != nil:
			wire, err := valuesToWire(update.Success)
			if err != nil {
				return errs.New(errs.KindBugOrPanic, err)
			}
			return stream.Send(&nilvmpb.RetrieveResultsUpdate{Values: wire})
		default:
			if err := stream.Send(&nilvmpb.RetrieveResultsUpdate{Waiting: true}); err != nil {
				return err
			}
		}
	}
	return nil
}
