package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// fcLayer implements a fully connected layer of a feed forward neural
// network
type fcLayer struct {
	weights *G.Node
	bias    *G.Node
	act     *Activation
}

// newFCLayer adds a new fully connected layer with a bias unit to the
// graph g
func newFCLayer(g *G.ExprGraph, in, out int, act *Activation,
	init G.InitWFn, name string) *fcLayer {
	weights := G.NewMatrix(g, tensor.Float64, G.WithShape(in, out),
		G.WithName(fmt.Sprintf("%vW", name)), G.WithInit(init))
	bias := G.NewMatrix(g, tensor.Float64, G.WithShape(1, out),
		G.WithName(fmt.Sprintf("%vB", name)), G.WithInit(G.Zeroes()))

	return &fcLayer{
		weights: weights,
		bias:    bias,
		act:     act,
	}
}

// fwd adds the forward pass of the fcLayer to the computational graph
func (f *fcLayer) fwd(x *G.Node) (*G.Node, error) {
	x, err := G.Mul(x, f.weights)
	if err != nil {
		return nil, fmt.Errorf("fwd: could not multiply weights: %v", err)
	}

	// Broadcast the bias weights to all samples along the batch
	// dimension
	x, err = G.BroadcastAdd(x, f.bias, nil, []byte{0})
	if err != nil {
		return nil, fmt.Errorf("fwd: could not add bias: %v", err)
	}

	return f.act.fwd(x)
}

// Learnables returns the weights and bias of the layer
func (f *fcLayer) Learnables() G.Nodes {
	return G.Nodes{f.weights, f.bias}
}
