// Package subsystems contains interfaces for implementation of flagsync client SDK components.
//
// Most applications will not need to refer to these types. You will use them if you are creating a
// custom data source, such as a test fixture, or if you are configuring HTTP or logging behavior
// through your own component rather than through the builders in fscomponents.
package subsystems
