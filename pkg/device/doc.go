// Package device implements devices and their signals.
//
// A Device joins a session under a base name and becomes ready once the
// session has negotiated a unique full name for it ("synth" becomes
// "synth.1"). Nothing happens in the background: the application calls
// Poll regularly, and all listener callbacks run inside Poll on the
// calling goroutine.
//
//	sess := session.NewLoopback()
//	dev, err := device.New("synth", sess)
//	sess.Release()
//	freq, err := dev.AddSignal(model.DirOut, "freq", 1, model.TypeFloat32, nil)
//	for !dev.Ready() {
//		dev.Poll(10 * time.Millisecond)
//	}
//	freq.SetValue(0, 440)
//
// Updates made while a queue is open are published together under one
// time tag when the queue is sent, or at the end of the next Poll.
//
// A Device is not safe for concurrent use.
package device
