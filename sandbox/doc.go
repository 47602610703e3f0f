// Package sandbox provides ephemeral code execution.
//
// The sandbox package runs user-submitted Python and Java programs as plain OS
// child processes bounded by a wall-clock timeout. No namespace, cgroup or
// container isolation is applied: the code runs with the privileges of the
// host process.
//
// Python programs are passed to the interpreter inline. Java programs are
// written to a per-request Workspace, compiled, run with the workspace as the
// classpath, and the workspace is removed before the result is returned.
//
// Every process is observed as a stream of Events. The executor settles the
// result on the first terminal event; chunks that arrive afterwards are
// drained and ignored, so each request yields exactly one ExecuteResult.
//
// Usage:
//
//	executor, err := sandbox.NewExecutor(logger, cfg)
//	result, err := executor.Execute(ctx, sandbox.ExecuteRequest{
//	    Language: "python",
//	    Code:     "print('Hello, World!')",
//	})
package sandbox
