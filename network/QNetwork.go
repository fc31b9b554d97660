package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Architecture describes the layout of a convolutional action-value
// network over stacked image frames
type Architecture struct {
	Stack   int
	Height  int
	Width   int
	Outputs int
	Conv    []ConvSpec
	Hidden  []int

	// Activation used after every hidden layer. The output layer is
	// always linear.
	Activation *Activation
}

// NatureArchitecture returns the three convolutional layers followed
// by a single 512 unit hidden layer commonly used for Atari agents
func NatureArchitecture(stack, height, width, outputs int) Architecture {
	return Architecture{
		Stack:   stack,
		Height:  height,
		Width:   width,
		Outputs: outputs,
		Conv: []ConvSpec{
			{Filters: 32, Kernel: 8, Stride: 4},
			{Filters: 64, Kernel: 4, Stride: 2},
			{Filters: 64, Kernel: 3, Stride: 1},
		},
		Hidden:     []int{512},
		Activation: ReLU(),
	}
}

// Validate checks that the input frames survive every convolution
func (a Architecture) Validate() error {
	if a.Stack <= 0 || a.Height <= 0 || a.Width <= 0 {
		return fmt.Errorf("validate: input shape must be positive, got "+
			"(%d, %d, %d)", a.Stack, a.Height, a.Width)
	}
	if a.Outputs <= 0 {
		return fmt.Errorf("validate: outputs must be positive, got %d",
			a.Outputs)
	}
	if a.Activation == nil {
		return fmt.Errorf("validate: nil activation")
	}

	_, _, err := a.convOutput()
	return err
}

// convOutput returns the spatial shape of the last convolution
func (a Architecture) convOutput() (int, int, error) {
	h, w := a.Height, a.Width
	for i, c := range a.Conv {
		if c.Filters <= 0 || c.Kernel <= 0 || c.Stride <= 0 {
			return 0, 0, fmt.Errorf("convOutput: layer %d: illegal "+
				"specification %+v", i, c)
		}
		h, w = c.outSize(h), c.outSize(w)
		if h < 1 || w < 1 {
			return 0, 0, fmt.Errorf("convOutput: layer %d: input of "+
				"(%d, %d) too small for kernel %d", i, a.Height, a.Width,
				c.Kernel)
		}
	}
	return h, w, nil
}

// flatFeatures returns the number of features fed to the first fully
// connected layer
func (a Architecture) flatFeatures() int {
	h, w, _ := a.convOutput()
	channels := a.Stack
	if len(a.Conv) > 0 {
		channels = a.Conv[len(a.Conv)-1].Filters
	}
	return channels * h * w
}

// QNetwork is a convolutional neural network which predicts one
// action value per action from a stack of frames. Input is fed with
// shape (batch, stack, height, width).
type QNetwork struct {
	g     *G.ExprGraph
	arch  Architecture
	batch int

	input      *G.Node
	layers     []Layer
	prediction *G.Node
	predVal    G.Value
}

// NewQNetwork adds a new QNetwork to the graph g. Weights are
// initialized with init and biases with zeroes.
func NewQNetwork(g *G.ExprGraph, batch int, arch Architecture,
	init G.InitWFn) (*QNetwork, error) {
	if batch <= 0 {
		return nil, fmt.Errorf("newQNetwork: batch size must be positive, "+
			"got %d", batch)
	}
	if err := arch.Validate(); err != nil {
		return nil, fmt.Errorf("newQNetwork: %w", err)
	}

	input := G.NewTensor(g, tensor.Float64, 4,
		G.WithShape(batch, arch.Stack, arch.Height, arch.Width),
		G.WithName("input"))

	layers := make([]Layer, 0, len(arch.Conv)+len(arch.Hidden)+1)
	channels := arch.Stack
	for i, c := range arch.Conv {
		name := fmt.Sprintf("conv%d", i)
		layers = append(layers, newConvLayer(g, channels, c,
			arch.Activation, init, name))
		channels = c.Filters
	}

	in := arch.flatFeatures()
	for i, units := range arch.Hidden {
		name := fmt.Sprintf("fc%d", i)
		layers = append(layers, newFCLayer(g, in, units, arch.Activation,
			init, name))
		in = units
	}
	layers = append(layers, newFCLayer(g, in, arch.Outputs, Identity(),
		init, "out"))

	net := &QNetwork{
		g:      g,
		arch:   arch,
		batch:  batch,
		input:  input,
		layers: layers,
	}

	pred, err := net.fwd(input)
	if err != nil {
		return nil, fmt.Errorf("newQNetwork: %w", err)
	}
	net.prediction = pred
	G.Read(pred, &net.predVal)

	return net, nil
}

// fwd adds the forward pass of all layers to the graph
func (q *QNetwork) fwd(x *G.Node) (*G.Node, error) {
	var err error
	flattened := false
	for i, layer := range q.layers {
		if _, ok := layer.(*fcLayer); ok && !flattened {
			x, err = G.Reshape(x, tensor.Shape{q.batch,
				q.arch.flatFeatures()})
			if err != nil {
				return nil, fmt.Errorf("fwd: could not flatten: %v", err)
			}
			flattened = true
		}

		x, err = layer.fwd(x)
		if err != nil {
			return nil, fmt.Errorf("fwd: layer %d: %w", i, err)
		}
	}
	return x, nil
}

// Architecture returns the layout of the network
func (q *QNetwork) Architecture() Architecture {
	return q.arch
}

// Graph returns the graph the network was added to
func (q *QNetwork) Graph() *G.ExprGraph {
	return q.g
}

// BatchSize returns the number of inputs the network predicts on at once
func (q *QNetwork) BatchSize() int {
	return q.batch
}

// Features returns the number of features in a single input
func (q *QNetwork) Features() int {
	return q.arch.Stack * q.arch.Height * q.arch.Width
}

// Outputs returns the number of action values predicted per input
func (q *QNetwork) Outputs() int {
	return q.arch.Outputs
}

// SetInput sets the value of the input node before running the graph.
// The input is flattened in row-major (batch, stack, height, width)
// order.
func (q *QNetwork) SetInput(input []float64) error {
	if len(input) != q.batch*q.Features() {
		return fmt.Errorf("setInput: invalid number of inputs\n\twant(%v)"+
			"\n\thave(%v)", q.batch*q.Features(), len(input))
	}

	inputTensor := tensor.New(
		tensor.WithBacking(input),
		tensor.WithShape(q.input.Shape()...),
	)
	return G.Let(q.input, inputTensor)
}

// Set copies the weights of source into q. Both networks must share the
// same architecture, but may differ in batch size.
func (q *QNetwork) Set(source NeuralNet) error {
	sourceNodes := source.Learnables()
	nodes := q.Learnables()
	if len(sourceNodes) != len(nodes) {
		return fmt.Errorf("set: cannot set weights from network with "+
			"different number of learnables\n\twant(%v)\n\thave(%v)",
			len(nodes), len(sourceNodes))
	}

	for i := range nodes {
		if !nodes[i].Shape().Eq(sourceNodes[i].Shape()) {
			return fmt.Errorf("set: learnable %d shape mismatch\n\t"+
				"want(%v)\n\thave(%v)", i, nodes[i].Shape(),
				sourceNodes[i].Shape())
		}
		dst := nodes[i].Value().Data().([]float64)
		src := sourceNodes[i].Value().Data().([]float64)
		copy(dst, src)
	}
	return nil
}

// Weights returns a copy of the values of all learnables in the order
// returned by Learnables()
func (q *QNetwork) Weights() [][]float64 {
	nodes := q.Learnables()
	weights := make([][]float64, len(nodes))
	for i, node := range nodes {
		data := node.Value().Data().([]float64)
		weights[i] = append([]float64(nil), data...)
	}
	return weights
}

// SetWeights sets the values of all learnables in the order returned by
// Learnables()
func (q *QNetwork) SetWeights(weights [][]float64) error {
	nodes := q.Learnables()
	if len(weights) != len(nodes) {
		return fmt.Errorf("setWeights: invalid number of weights\n\t"+
			"want(%v)\n\thave(%v)", len(nodes), len(weights))
	}
	for i, node := range nodes {
		dst := node.Value().Data().([]float64)
		if len(dst) != len(weights[i]) {
			return fmt.Errorf("setWeights: learnable %d: invalid number "+
				"of values\n\twant(%v)\n\thave(%v)", i, len(dst),
				len(weights[i]))
		}
		copy(dst, weights[i])
	}
	return nil
}

// Learnables returns the learnable nodes of the network
func (q *QNetwork) Learnables() G.Nodes {
	learnables := make(G.Nodes, 0, 2*len(q.layers))
	for _, layer := range q.layers {
		learnables = append(learnables, layer.Learnables()...)
	}
	return learnables
}

// Model returns the learnables of the network as value-grads for a
// solver
func (q *QNetwork) Model() []G.ValueGrad {
	learnables := q.Learnables()
	model := make([]G.ValueGrad, len(learnables))
	for i, learnable := range learnables {
		model[i] = learnable
	}
	return model
}

// Output returns the prediction of the network on the last run of the
// graph, with shape (batch, outputs)
func (q *QNetwork) Output() G.Value {
	return q.predVal
}

// Prediction returns the node holding the network's prediction
func (q *QNetwork) Prediction() *G.Node {
	return q.prediction
}

// Polyak sets the weights of q to a Polyak average of its weights and
// the weights of source:
//
//	θ <- τ * θ_source + (1 - τ) * θ
func (q *QNetwork) Polyak(source NeuralNet, tau float64) error {
	sourceNodes := source.Learnables()
	nodes := q.Learnables()
	if len(sourceNodes) != len(nodes) {
		return fmt.Errorf("polyak: cannot average weights of network with "+
			"different number of learnables\n\twant(%v)\n\thave(%v)",
			len(nodes), len(sourceNodes))
	}

	for i := range nodes {
		dst := nodes[i].Value().Data().([]float64)
		src := sourceNodes[i].Value().Data().([]float64)
		if len(dst) != len(src) {
			return fmt.Errorf("polyak: learnable %d size mismatch\n\t"+
				"want(%v)\n\thave(%v)", i, len(dst), len(src))
		}
		for j := range dst {
			dst[j] = tau*src[j] + (1-tau)*dst[j]
		}
	}
	return nil
}
