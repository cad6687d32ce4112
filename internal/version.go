package internal

// SDKVersion is the current version of the SDK, sent in the User-Agent header and in remote data
// requests.
const SDKVersion = "1.0.0"
