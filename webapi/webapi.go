package webapi

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/sftpblast/sftpblast/sftpblast"
	"github.com/sftpblast/sftpblast/sftpblast/types"
)

var upgrader = websocket.Upgrader{}

func serveResults(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/sftpblast" {
		http.Error(w, "Not found", 404)
		return
	}
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", 405)
		return
	}

	config := types.NewTestConfig()
	config.Host = r.URL.Query().Get("host")
	if len(config.Host) == 0 {
		http.Error(w, "Missing host", 400)
		return
	}
	config.Username = r.URL.Query().Get("user")
	if len(config.Username) == 0 {
		http.Error(w, "Missing user", 400)
		return
	}
	config.PrivateKeyPath = r.URL.Query().Get("key")
	if len(config.PrivateKeyPath) == 0 {
		http.Error(w, "Missing key", 400)
		return
	}
	if root := r.URL.Query().Get("root"); root != "" {
		config.RootDir = root
	}
	if filesStr := r.URL.Query().Get("files"); filesStr != "" {
		files, err := strconv.Atoi(filesStr)
		if err != nil {
			http.Error(w, "Invalid file count", 400)
			return
		}
		config.NumFiles = files
	}
	if concurrencyStr := r.URL.Query().Get("c"); concurrencyStr != "" {
		concurrency, err := strconv.Atoi(concurrencyStr)
		if err != nil {
			http.Error(w, "Invalid concurrency", 400)
			return
		}
		config.Concurrency = concurrency
	}
	if r.URL.Query().Get("keepalive") == "1" {
		config.KeepAlive = true
	}

	test, err := sftpblast.NewTest(config)
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}

	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Print("Websocket upgrade:", err)
		return
	}
	defer c.Close()

	results, err := test.Start()
	if err != nil {
		c.WriteJSON(map[string]string{"error": err.Error()})
		return
	}

	go readLoop(c)
	// the run proceeds to completion whether or not the client stays
	// connected; outcomes are buffered for the full artifact count
	for stat := range results {
		message, jsonerr := json.Marshal(stat)
		if jsonerr != nil {
			log.Println(jsonerr)
			continue
		}
		err = c.WriteMessage(websocket.TextMessage, message)
		if err != nil {
			log.Println("write:", err)
		}
	}
	if err := c.WriteJSON(test.Report()); err != nil {
		log.Println("write:", err)
	}
}

func readLoop(c *websocket.Conn) {
	for {
		if _, _, err := c.NextReader(); err != nil {
			c.Close()
			break
		}
	}
}

// Serve waits for connections and streams per-transfer results
func Serve(addr string) {
	http.HandleFunc("/sftpblast", serveResults)
	err := http.ListenAndServe(addr, nil)
	if err != nil {
		log.Fatal("ListenAndServe: ", err)
	}
}
