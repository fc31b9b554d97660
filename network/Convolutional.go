package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// ConvSpec describes a single 2D convolutional layer with square
// kernels and no padding
type ConvSpec struct {
	Filters int
	Kernel  int
	Stride  int
}

// outSize returns the side length of the layer's output given an input
// side length
func (c ConvSpec) outSize(in int) int {
	if in < c.Kernel {
		return 0
	}
	return (in-c.Kernel)/c.Stride + 1
}

// convLayer implements a 2D convolutional layer
type convLayer struct {
	spec    ConvSpec
	filters *G.Node
	bias    *G.Node
	act     *Activation
}

// newConvLayer adds a new convolutional layer with in input channels
// to the graph g
func newConvLayer(g *G.ExprGraph, in int, spec ConvSpec, act *Activation,
	init G.InitWFn, name string) *convLayer {
	filters := G.NewTensor(g, tensor.Float64, 4,
		G.WithShape(spec.Filters, in, spec.Kernel, spec.Kernel),
		G.WithName(fmt.Sprintf("%vW", name)), G.WithInit(init))
	bias := G.NewTensor(g, tensor.Float64, 4,
		G.WithShape(1, spec.Filters, 1, 1),
		G.WithName(fmt.Sprintf("%vB", name)), G.WithInit(G.Zeroes()))

	return &convLayer{
		spec:    spec,
		filters: filters,
		bias:    bias,
		act:     act,
	}
}

// fwd adds the forward pass of the convLayer to the computational graph.
// The input must have shape (batch, channels, height, width).
func (c *convLayer) fwd(x *G.Node) (*G.Node, error) {
	kernel := tensor.Shape{c.spec.Kernel, c.spec.Kernel}
	pad := []int{0, 0}
	stride := []int{c.spec.Stride, c.spec.Stride}
	dilation := []int{1, 1}

	x, err := G.Conv2d(x, c.filters, kernel, pad, stride, dilation)
	if err != nil {
		return nil, fmt.Errorf("fwd: could not convolve: %v", err)
	}

	// Broadcast the bias along the batch and spatial dimensions
	x, err = G.BroadcastAdd(x, c.bias, nil, []byte{0, 2, 3})
	if err != nil {
		return nil, fmt.Errorf("fwd: could not add bias: %v", err)
	}

	return c.act.fwd(x)
}

// Learnables returns the filters and bias of the layer
func (c *convLayer) Learnables() G.Nodes {
	return G.Nodes{c.filters, c.bias}
}
