// Package workspace loads the gonnet.yaml project file. A workspace file
// carries default library paths, external variable and top-level argument
// bindings, evaluation limits, policy paths and the evaluation store
// location, so repeated command invocations inside a project do not need to
// restate them. Command-line flags layer on top of workspace values.
package workspace
