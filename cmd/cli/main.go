package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "auth":
		handleAuth(args)
	case "account":
		handleAccount(args)
	case "agency":
		handleAgency(args)
	case "document":
		handleDocument(args)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleAuth(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: policydesk auth <login|logout|who|change-password>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "login":
		loginUser(args[1:])
	case "logout":
		logoutUser()
	case "who":
		whoAmI()
	case "change-password":
		changePassword(args[1:])
	default:
		fmt.Printf("unknown auth command: %s\n", subCmd)
	}
}

func handleAccount(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: policydesk account <create|list>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "create":
		createAccount(args[1:])
	case "list":
		listAccounts(args[1:])
	default:
		fmt.Printf("unknown account command: %s\n", subCmd)
	}
}

func handleAgency(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: policydesk agency <create|list>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "create":
		createAgency(args[1:])
	case "list":
		listAgencies(args[1:])
	default:
		fmt.Printf("unknown agency command: %s\n", subCmd)
	}
}

func handleDocument(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: policydesk document <upload|list|status>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "upload":
		uploadDocument(args[1:])
	case "list":
		listDocuments(args[1:])
	case "status":
		documentStatus(args[1:])
	default:
		fmt.Printf("unknown document command: %s\n", subCmd)
	}
}

// Auth commands
func loginUser(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "user email")
	password := fs.String("password", "", "password")

	fs.Parse(args)

	if *email == "" || *password == "" {
		fmt.Println("Error: email and password are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{"email": *email, "password": *password}
	data, _ := json.Marshal(payload)
	resp, err := http.Post(getAPIURL()+"/auth/login", "application/json", bytes.NewReader(data))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == 200 {
		if token, ok := result["token"].(string); ok {
			saveToken(token)
			fmt.Printf("✓ Logged in as: %s (%v)\n", *email, result["role"])
		}
	} else {
		fmt.Printf("✗ Login failed: %v\n", result)
	}
}

func logoutUser() {
	os.Remove(tokenFile())
	fmt.Println("✓ Logged out")
}

func whoAmI() {
	token := loadToken()
	if token == "" {
		fmt.Println("Not logged in")
		return
	}
	fmt.Printf("✓ Logged in (token: %s...)\n", token[:20])
}

func changePassword(args []string) {
	fs := flag.NewFlagSet("change-password", flag.ExitOnError)
	oldPassword := fs.String("old", "", "current password")
	newPassword := fs.String("new", "", "new password")

	fs.Parse(args)

	if *oldPassword == "" || *newPassword == "" {
		fmt.Println("Error: old and new passwords are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{"oldPassword": *oldPassword, "newPassword": *newPassword}
	result, status, err := postJSON("/auth/change-password", payload)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status == 200 {
		fmt.Println("✓ Password changed")
	} else {
		fmt.Printf("✗ Change failed: %v\n", result)
	}
}

// Account commands
func createAccount(args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	agency := fs.String("agency", "", "agency ID")
	role := fs.String("role", "AGENT", "role (VP or AGENT)")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "initial password")

	fs.Parse(args)

	if *agency == "" || *email == "" || *password == "" {
		fmt.Println("Error: agency, email, and password are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{
		"agencyId": *agency,
		"role":     *role,
		"email":    *email,
		"password": *password,
	}
	result, status, err := postJSON("/accounts", payload)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status == 201 {
		fmt.Printf("✓ Account created: %v (%s)\n", result["id"], *role)
	} else {
		fmt.Printf("✗ Creation failed: %v\n", result)
	}
}

func listAccounts(args []string) {
	_ = args
	result, status, err := getJSON("/accounts")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status != 200 {
		fmt.Printf("✗ List failed: %v\n", result)
		return
	}

	accounts, _ := result["accounts"].([]interface{})
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tROLE\tAGENCY")
	for _, a := range accounts {
		acc, _ := a.(map[string]interface{})
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\n", acc["id"], acc["email"], acc["role"], acc["agencyId"])
	}
	w.Flush()
}

// Agency commands
func createAgency(args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	name := fs.String("name", "", "agency name")

	fs.Parse(args)

	if *name == "" {
		fmt.Println("Error: name is required")
		fs.PrintDefaults()
		return
	}

	result, status, err := postJSON("/agencies", map[string]string{"name": *name})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status == 201 {
		fmt.Printf("✓ Agency created: %v\n", result["id"])
	} else {
		fmt.Printf("✗ Creation failed: %v\n", result)
	}
}

func listAgencies(args []string) {
	_ = args
	result, status, err := getJSON("/agencies")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status != 200 {
		fmt.Printf("✗ List failed: %v\n", result)
		return
	}

	agencies, _ := result["agencies"].([]interface{})
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME")
	for _, a := range agencies {
		ag, _ := a.(map[string]interface{})
		fmt.Fprintf(w, "%v\t%v\n", ag["id"], ag["name"])
	}
	w.Flush()
}

// Document commands
func uploadDocument(args []string) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	fileName := fs.String("file", "", "document file name")
	size := fs.Int64("size", 0, "document size in bytes")

	fs.Parse(args)

	if *fileName == "" || *size <= 0 {
		fmt.Println("Error: file and size are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]interface{}{"fileName": *fileName, "sizeBytes": *size}
	result, status, err := postJSON("/documents", payload)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status == 202 {
		fmt.Printf("✓ Document accepted: %v\n", result["id"])
	} else {
		fmt.Printf("✗ Upload failed: %v\n", result)
	}
}

func listDocuments(args []string) {
	_ = args
	result, status, err := getJSON("/documents")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status != 200 {
		fmt.Printf("✗ List failed: %v\n", result)
		return
	}

	docs, _ := result["documents"].([]interface{})
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFILE\tSTATUS\tUPLOADED")
	for _, d := range docs {
		doc, _ := d.(map[string]interface{})
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\n", doc["id"], doc["fileName"], doc["status"], doc["createdAt"])
	}
	w.Flush()
}

func documentStatus(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: policydesk document status <document-id>")
		return
	}

	result, status, err := getJSON("/documents/" + args[0])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status != 200 {
		fmt.Printf("✗ Status failed: %v\n", result)
		return
	}

	fmt.Printf("Status: %v\n", result["status"])
	if fields, ok := result["fields"].(map[string]interface{}); ok && len(fields) > 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "FIELD\tVALUE")
		for k, v := range fields {
			fmt.Fprintf(w, "%s\t%v\n", k, v)
		}
		w.Flush()
	}
	if errMsg, ok := result["error"].(string); ok && errMsg != "" {
		fmt.Printf("Error: %s\n", errMsg)
	}
}

// Helper functions
func getAPIURL() string {
	if url := os.Getenv("POLICYDESK_API"); url != "" {
		return url
	}
	return "http://localhost:8080/api"
}

func tokenFile() string {
	home, _ := os.UserHomeDir()
	return home + "/.policydesk/token"
}

func saveToken(token string) error {
	os.MkdirAll(os.Getenv("HOME")+"/.policydesk", 0700)
	return os.WriteFile(tokenFile(), []byte(token), 0600)
}

func loadToken() string {
	data, _ := os.ReadFile(tokenFile())
	return string(data)
}

func addAuthHeader(req *http.Request) {
	token := loadToken()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func postJSON(path string, payload interface{}) (map[string]interface{}, int, error) {
	data, _ := json.Marshal(payload)
	req, _ := http.NewRequest("POST", getAPIURL()+path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	return result, resp.StatusCode, nil
}

func getJSON(path string) (map[string]interface{}, int, error) {
	req, _ := http.NewRequest("GET", getAPIURL()+path, nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	return result, resp.StatusCode, nil
}

func printUsage() {
	fmt.Print(`PolicyDesk CLI

Usage:
  policydesk <command> [options]

Commands:
  auth      Authentication (login, logout, who, change-password)
  account   Account provisioning (create, list)
  agency    Agency management (create, list)
  document  Document operations (upload, list, status)
  help      Show this help message

Environment Variables:
  POLICYDESK_API    API endpoint (default: http://localhost:8080/api)

Examples:
  policydesk auth login -email admin@policydesk.local -password changeme-now
  policydesk agency create -name "Acme Insurance"
  policydesk account create -agency <agency-id> -role VP -email vp@acme.com -password secret123
  policydesk document upload -file policy.pdf -size 52311
`)
}
