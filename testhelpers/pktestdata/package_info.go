// Package pktestdata provides a mechanism for providing dynamically updatable remote data in a
// simplified form to an SDK client in test scenarios.
//
// Unlike the file data source (in the pkfiledata package), this mechanism does not use any external
// resources. It provides only the data that the application has put into it using the Update
// method.
//
//	td := pktestdata.RemoteData()
//	td.Update(td.Message("welcome").Trigger(pkautomation.Trigger{Type: pkautomation.TriggerAppInit, Goal: 1}))
//
//	config := pkclient.Config{
//	    RemoteData: td,
//	}
//	client, _ := pkclient.MakeCustomClient(appKey, config, timeout)
//
//	// messages can be changed or removed at any time:
//	td.Update(td.Message("welcome").Limit(3))
//	td.Remove("welcome")
//
// If the same TestRemoteData instance is used to configure multiple clients, any change made to the
// data will propagate to all of them.
package pktestdata
