// Package contract implements the Contract Synchronization Pipeline.
//
// Contracts are declared in YAML by fragments marked as contract-bearing.
// A [Pipeline] bound to a fragment catalog selects the fragments included
// for a configuration, decodes them into a validated [Set] and renders the
// set once per type system:
//
//	p := &contract.Pipeline{
//	    Catalog:   catalog,
//	    Renderers: []contract.Renderer{goserver.New(), tsclient.New(), graphql.New(module)},
//	}
//	res, err := p.Synchronize(cfg)
//
// Every renderer can parse its own output back into a [Shape]. After
// rendering, the pipeline compares each parsed shape with the shape of the
// set, so a renderer that drops or mistypes a field fails synchronization
// instead of producing drifting server and client types.
package contract
