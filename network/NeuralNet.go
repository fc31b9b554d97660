// Package network implements neural network function approximators
// using Gorgonia.
package network

import (
	G "gorgonia.org/gorgonia"
)

// NeuralNet is a neural network that populates a Gorgonia computational
// graph. A NeuralNet has no VM of its own. An external VM should be used
// to run the graph, after which Output() holds the network's prediction.
type NeuralNet interface {
	Graph() *G.ExprGraph
	BatchSize() int
	Features() int
	Outputs() int
	SetInput([]float64) error
	Set(NeuralNet) error
	Learnables() G.Nodes
	Model() []G.ValueGrad
	Output() G.Value
	Prediction() *G.Node
}

// Layer is a single layer of a NeuralNet
type Layer interface {
	fwd(x *G.Node) (*G.Node, error)
	Learnables() G.Nodes
}
