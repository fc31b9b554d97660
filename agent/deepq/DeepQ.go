// Package deepq implements the deep Q-learning algorithm over stacked
// image frames
package deepq

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samuelfneumann/breakoutdqn/agent"
	"github.com/samuelfneumann/breakoutdqn/expreplay"
	"github.com/samuelfneumann/breakoutdqn/network"
	"github.com/samuelfneumann/breakoutdqn/utils/floatutils"
	"golang.org/x/exp/rand"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// DeepQ implements the deep Q-learning algorithm. This algorithm is
// conceptually similar to DQN, but uses the MSE loss.
//
// DeepQ is safe for concurrent use. Weights are only changed during
// Learn and SynchronizeTarget, which exclude concurrent action
// selection.
type DeepQ struct {
	mu sync.Mutex

	// Network for selecting actions, taking a single state as input
	behaviourNet   *network.QNetwork
	behaviourNetVM G.VM
	behaviourInput []float64
	stale          bool // Behaviour weights lag behind trainNet

	// Network whose weights are adapted, taking batches of states
	trainNet   *network.QNetwork
	trainNetVM G.VM
	solver     G.Solver

	// Network that provides the update target for a batch of inputs
	targetNet   *network.QNetwork
	targetNetVM G.VM
	tau         float64

	// nextStateActionValues is the input node in the graph of trainNet
	// that is given the action values of the next state. For update:
	//
	// Q(s, a) <- Q(s, a) + α * (r + γ * max Q(s', a') - Q(s, a)) ∇Q(s, a)
	//
	// nextStateActionValues provides Q(s', a') for all a' in s' and is
	// computed by targetNet.
	nextStateActionValues *G.Node
	rewards               *G.Node
	discounts             *G.Node
	selectedActions       *G.Node // One-hot actions taken in each state
	costVal               G.Value

	epsilon    EpsilonSchedule
	numActions int
	batchSize  int

	gradientSteps int
	rng           *rand.Rand
	logger        zerolog.Logger
}

// New creates and returns a new DeepQ agent
func New(config Config, logger zerolog.Logger) (*DeepQ, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	init, err := config.InitWFn.Create()
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}
	solver, err := config.Solver.Create()
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	arch := config.Architecture
	batchSize := config.BatchSize
	numActions := arch.Outputs

	// Behaviour network for selecting actions
	behaviourNet, err := network.NewQNetwork(G.NewGraph(), 1, arch, init)
	if err != nil {
		return nil, fmt.Errorf("new: could not create behaviour network: "+
			"%w", err)
	}
	behaviourNetVM := G.NewTapeMachine(behaviourNet.Graph())

	// Target network which provides the update target
	targetNet, err := network.NewQNetwork(G.NewGraph(), batchSize, arch,
		init)
	if err != nil {
		return nil, fmt.Errorf("new: could not create target network: %w",
			err)
	}
	targetNetVM := G.NewTapeMachine(targetNet.Graph())

	// Training network which learns the weights
	trainNet, err := network.NewQNetwork(G.NewGraph(), batchSize, arch,
		init)
	if err != nil {
		return nil, fmt.Errorf("new: could not create learning network: %w",
			err)
	}
	gTrain := trainNet.Graph()

	// All networks start from the same weights
	if err := behaviourNet.Set(trainNet); err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}
	if err := targetNet.Set(trainNet); err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	// Create nodes to compute the update target: r + γ * max[Q(s', a')]
	nextStateActionValues := G.NewMatrix(gTrain, tensor.Float64,
		G.WithShape(batchSize, numActions), G.WithName("targetActionVals"))
	rewards := G.NewVector(gTrain, tensor.Float64, G.WithShape(batchSize),
		G.WithName("reward"))
	discounts := G.NewVector(gTrain, tensor.Float64, G.WithShape(batchSize),
		G.WithName("discount"))

	updateTarget, err := G.Max(nextStateActionValues, 1)
	if err != nil {
		return nil, fmt.Errorf("new: could not compute update target: %w",
			err)
	}
	updateTarget = G.Must(G.HadamardProd(updateTarget, discounts))
	updateTarget = G.Must(G.Add(updateTarget, rewards))

	// Action selected in each sampled state. This is needed to compute
	// the loss using the correct action value since the network outputs N
	// action values, one for each environmental action
	selectedActions := G.NewMatrix(gTrain, tensor.Float64,
		G.WithShape(batchSize, numActions), G.WithName("actionSelected"))
	selectedActionsValue := G.Must(G.HadamardProd(trainNet.Prediction(),
		selectedActions))
	selectedActionsValue = G.Must(G.Sum(selectedActionsValue, 1))

	// Compute the mean squared TD error
	losses := G.Must(G.Sub(updateTarget, selectedActionsValue))
	losses = G.Must(G.Square(losses))
	cost := G.Must(G.Mean(losses))

	d := &DeepQ{
		behaviourNet:          behaviourNet,
		behaviourNetVM:        behaviourNetVM,
		behaviourInput:        make([]float64, behaviourNet.Features()),
		trainNet:              trainNet,
		solver:                solver,
		targetNet:             targetNet,
		targetNetVM:           targetNetVM,
		tau:                   config.Tau,
		nextStateActionValues: nextStateActionValues,
		rewards:               rewards,
		discounts:             discounts,
		selectedActions:       selectedActions,
		epsilon:               config.Epsilon,
		numActions:            numActions,
		batchSize:             batchSize,
		rng:                   rand.New(rand.NewSource(config.Seed)),
		logger:                logger.With().Str("component", "deepq").Logger(),
	}
	G.Read(cost, &d.costVal)

	if _, err := G.Grad(cost, trainNet.Learnables()...); err != nil {
		return nil, fmt.Errorf("new: could not compute gradient: %w", err)
	}

	// Compile the trainNet graph into a VM
	d.trainNetVM = G.NewTapeMachine(
		gTrain,
		G.BindDualValues(trainNet.Learnables()...),
	)

	return d, nil
}

// NumActions returns the number of actions the agent chooses between
func (d *DeepQ) NumActions() int {
	return d.numActions
}

// Epsilon returns the exploration schedule of the behaviour policy
func (d *DeepQ) Epsilon() EpsilonSchedule {
	return d.epsilon
}

// GradientSteps returns the number of learning steps taken
func (d *DeepQ) GradientSteps() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gradientSteps
}

// SelectAction selects an ε-greedy action in state, where ε is
// determined by the exploration schedule at the given training frame.
// Ties between greedy actions are broken uniformly at random.
func (d *DeepQ) SelectAction(frame int, state *tensor.Dense,
	evaluation bool) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ε := d.epsilon.Epsilon(frame, evaluation)
	if d.rng.Float64() < ε {
		return d.rng.Intn(d.numActions), nil
	}

	values, err := d.actionValues(state)
	if err != nil {
		return 0, fmt.Errorf("selectAction: %w", err)
	}

	_, indices := floatutils.MaxSlice(values)
	return indices[d.rng.Intn(len(indices))], nil
}

// ActionValues returns the predicted value of each action in state
func (d *DeepQ) ActionValues(state *tensor.Dense) ([]float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	values, err := d.actionValues(state)
	if err != nil {
		return nil, fmt.Errorf("actionValues: %w", err)
	}
	return append([]float64(nil), values...), nil
}

// actionValues runs the behaviour network on state. The returned slice
// is owned by the network.
func (d *DeepQ) actionValues(state *tensor.Dense) ([]float64, error) {
	if d.stale {
		if err := d.behaviourNet.Set(d.trainNet); err != nil {
			return nil, err
		}
		d.stale = false
	}

	data, ok := state.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("state must hold float64 data, got %T",
			state.Data())
	}
	if len(data) != len(d.behaviourInput) {
		return nil, fmt.Errorf("invalid state size\n\twant(%v)\n\thave(%v)",
			len(d.behaviourInput), len(data))
	}
	copy(d.behaviourInput, data)

	if err := d.behaviourNet.SetInput(d.behaviourInput); err != nil {
		return nil, err
	}
	defer d.behaviourNetVM.Reset()
	if err := d.behaviourNetVM.RunAll(); err != nil {
		return nil, fmt.Errorf("could not run behaviour network: %w", err)
	}

	return d.behaviourNet.Output().Data().([]float64), nil
}

// Learn updates the weights of the agent using a batch of transitions
// sampled from store. The next state value of each transition is
// discounted by discount, or by zero if the transition was terminal.
// If store does not yet hold enough transitions, no update is made and
// the returned Loss is marked as skipped.
func (d *DeepQ) Learn(store agent.Sampler, discount float64,
	batchSize int) (agent.Loss, error) {
	if batchSize != d.batchSize {
		return agent.Loss{}, fmt.Errorf("learn: batch size %d does not "+
			"match network batch size %d", batchSize, d.batchSize)
	}

	batch, err := store.Sample(batchSize)
	if expreplay.IsEmptyBuffer(err) || expreplay.IsInsufficientSamples(err) {
		return agent.Loss{Skipped: true}, nil
	} else if err != nil {
		return agent.Loss{}, fmt.Errorf("learn: could not sample: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// Previous action one-hot vectors
	actions := make([]float64, batchSize*d.numActions)
	for i, a := range batch.Actions {
		if a < 0 || a >= d.numActions {
			return agent.Loss{}, fmt.Errorf("learn: illegal action %d "+
				"sampled", a)
		}
		actions[i*d.numActions+a] = 1.0
	}
	prevActions := tensor.New(
		tensor.WithShape(batchSize, d.numActions),
		tensor.WithBacking(actions),
	)
	if err := G.Let(d.selectedActions, prevActions); err != nil {
		return agent.Loss{}, fmt.Errorf("learn: could not set actions: %w",
			err)
	}

	// Predict the action values in the next states
	if err := d.targetNet.SetInput(batch.NextStates); err != nil {
		return agent.Loss{}, fmt.Errorf("learn: could not set target "+
			"network input: %w", err)
	}
	if err := d.targetNetVM.RunAll(); err != nil {
		d.targetNetVM.Reset()
		return agent.Loss{}, fmt.Errorf("learn: could not run target "+
			"network: %w", err)
	}
	nextValues := append([]float64(nil),
		d.targetNet.Output().Data().([]float64)...)
	d.targetNetVM.Reset()

	nextValuesTensor := tensor.New(
		tensor.WithShape(batchSize, d.numActions),
		tensor.WithBacking(nextValues),
	)
	if err := G.Let(d.nextStateActionValues, nextValuesTensor); err != nil {
		return agent.Loss{}, fmt.Errorf("learn: could not set next "+
			"state-action values: %w", err)
	}

	rewardTensor := tensor.New(tensor.WithBacking(batch.Rewards),
		tensor.WithShape(batchSize))
	if err := G.Let(d.rewards, rewardTensor); err != nil {
		return agent.Loss{}, fmt.Errorf("learn: could not set reward: %w",
			err)
	}

	discounts := make([]float64, batchSize)
	for i, terminal := range batch.Terminals {
		if !terminal {
			discounts[i] = discount
		}
	}
	discountTensor := tensor.New(tensor.WithBacking(discounts),
		tensor.WithShape(batchSize))
	if err := G.Let(d.discounts, discountTensor); err != nil {
		return agent.Loss{}, fmt.Errorf("learn: could not set discount: %w",
			err)
	}

	if err := d.trainNet.SetInput(batch.States); err != nil {
		return agent.Loss{}, fmt.Errorf("learn: could not set training "+
			"network input: %w", err)
	}

	// Run the learning step
	defer d.trainNetVM.Reset()
	if err := d.trainNetVM.RunAll(); err != nil {
		return agent.Loss{}, fmt.Errorf("learn: could not run training "+
			"network: %w", err)
	}
	if err := d.solver.Step(d.trainNet.Model()); err != nil {
		return agent.Loss{}, fmt.Errorf("learn: could not step solver: %w",
			err)
	}
	d.gradientSteps++
	d.stale = true

	loss := agent.Loss{Value: d.costVal.Data().(float64)}
	d.logger.Debug().
		Int("step", d.gradientSteps).
		Float64("loss", loss.Value).
		Msg("learning step")
	return loss, nil
}

// SynchronizeTarget updates the target network from the learned
// weights, either by copying them or by Polyak averaging
func (d *DeepQ) SynchronizeTarget() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var err error
	if d.tau == 1.0 {
		err = d.targetNet.Set(d.trainNet)
	} else {
		err = d.targetNet.Polyak(d.trainNet, d.tau)
	}
	if err != nil {
		return fmt.Errorf("synchronizeTarget: %w", err)
	}

	d.logger.Debug().Int("step", d.gradientSteps).Msg("target synchronized")
	return nil
}

// checkpoint is the serialized state of a DeepQ agent
type checkpoint struct {
	Weights       [][]float64
	TargetWeights [][]float64
	GradientSteps int
}

// GobEncode implements the gob.GobEncoder interface
func (d *DeepQ) GobEncode() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c := checkpoint{
		Weights:       d.trainNet.Weights(),
		TargetWeights: d.targetNet.Weights(),
		GradientSteps: d.gradientSteps,
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(c); err != nil {
		return nil, fmt.Errorf("gobEncode: %w", err)
	}
	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface. The agent must
// have been created with the same architecture as the encoded agent.
func (d *DeepQ) GobDecode(in []byte) error {
	var c checkpoint
	if err := gob.NewDecoder(bytes.NewReader(in)).Decode(&c); err != nil {
		return fmt.Errorf("gobDecode: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.trainNet.SetWeights(c.Weights); err != nil {
		return fmt.Errorf("gobDecode: %w", err)
	}
	if err := d.targetNet.SetWeights(c.TargetWeights); err != nil {
		return fmt.Errorf("gobDecode: %w", err)
	}
	d.gradientSteps = c.GradientSteps
	d.stale = true
	return nil
}

// Save saves the weights of the agent to filename
func (d *DeepQ) Save(filename string) error {
	data, err := d.GobEncode()
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

// Load loads the weights of the agent from filename
func (d *DeepQ) Load(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	if err := d.GobDecode(data); err != nil {
		return fmt.Errorf("load: %w", err)
	}
	return nil
}

// Close closes all VMs of the agent
func (d *DeepQ) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, vm := range []G.VM{d.behaviourNetVM, d.trainNetVM,
		d.targetNetVM} {
		if err := vm.Close(); err != nil {
			return fmt.Errorf("close: %w", err)
		}
	}
	return nil
}
