// Package evalcore is the bias-evaluation execution pipeline: it runs a
// fixed catalog of cognitive-bias test cases against a model endpoint under
// controlled decoding parameters, scores and aggregates the outputs, ships
// raw prompt/output pairs to customer-owned evidence stores, and emits a
// signed, verifiable reproducibility manifest for every completed run.
//
// Raw model traffic never lands in the control-plane database; only hashes,
// references, and aggregates do.
//
// The service binary lives in cmd/evalcore-server. The orchestrator package
// owns the evaluation lifecycle; detect, evidence, provider, repropack, and
// canon implement the pipeline stages it composes.
package evalcore
