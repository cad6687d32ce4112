// Package pkfiledata allows the PushKit client to read remote data payloads from local files instead
// of polling the remote data service. This is useful for testing in-app messages and other remote
// configuration without a server.
//
// To use the file-based source in your SDK configuration, call pkfiledata.DataSource to obtain a
// configurable object that you will use as the configuration's RemoteData:
//
//	config := pkclient.Config{
//	    RemoteData: pkfiledata.DataSource().FilePaths("./test-data/messages.json"),
//	}
//	client, _ := pkclient.MakeCustomClient(myAppKey, config, 5*time.Second)
//
// Use FilePaths to specify any number of file paths. The files are not loaded until the client
// starts. At that point, if any file does not exist or cannot be parsed, the source logs an error
// and delivers nothing.
//
// Files may contain either JSON or YAML; if the first non-whitespace character is '{', the file is
// parsed as JSON, otherwise as YAML. Each file has the same shape as a remote data response:
//
//	{
//	  "payloads": [
//	    {
//	      "type": "in_app_messages",
//	      "timestamp": "2024-03-01T12:00:00Z",
//	      "data": { "in_app_messages": [ ... ] }
//	    }
//	  ]
//	}
//
// Or, in YAML:
//
//	payloads:
//	  - type: in_app_messages
//	    data:
//	      in_app_messages: []
//
// A payload without a timestamp gets the modification time of its file, so that editing the file
// makes its payloads newer. It is an error for two files to contain a payload of the same type,
// unless DuplicateTypesHandling says otherwise.
package pkfiledata
